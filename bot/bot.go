// Package bot holds the event handlers: command parsing, spell checking of
// incoming messages, and the add-to-dictionary interaction flow.
package bot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pedantic/gateway"
	"pedantic/rest"
)

// Corrector produces ranked correction candidates. Pure and deterministic;
// AddWord is the only mutation.
type Corrector interface {
	SpellCheck(word string) []string
	AddWord(word string) error
}

// Messenger is the slice of the REST client the handlers need.
type Messenger interface {
	PostMessage(channelID, content string, opts ...rest.MessageOpt) error
	DeleteMessage(channelID, messageID string) error
	AckInteraction(id, token string) error
	RespondInteractionText(id, token, content string) error
}

// Bot reads every message and complains about typos. Pedantic mode can be
// toggled at runtime with prefix commands.
type Bot struct {
	prefix    string
	corrector Corrector
	rest      Messenger

	mu       sync.Mutex
	pedantic bool
	selfID   string
	// pending maps a suggestion button's custom id to the word it offers
	// to add to the dictionary.
	pending map[string]string
}

func New(prefix string, corrector Corrector, messenger Messenger) *Bot {
	return &Bot{
		prefix:    prefix,
		corrector: corrector,
		rest:      messenger,
		pedantic:  true,
		pending:   make(map[string]string),
	}
}

// Bind registers the bot's handlers on the dispatcher.
func (b *Bot) Bind(d *gateway.Dispatcher) {
	d.Register(gateway.EventReady, b.onReady)
	d.Register(gateway.EventMessageCreate, b.onMessage)
	d.Register(gateway.EventInteractionCreate, b.onInteraction)
}

// Pedantic reports whether the bot is currently correcting messages.
func (b *Bot) Pedantic() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pedantic
}

func (b *Bot) setPedantic(on bool) {
	b.mu.Lock()
	b.pedantic = on
	b.mu.Unlock()
}

func (b *Bot) onReady(data json.RawMessage) {
	var ready gateway.Ready
	if err := json.Unmarshal(data, &ready); err != nil {
		slog.Error("malformed READY payload", "err", err)
		return
	}
	b.mu.Lock()
	b.selfID = ready.User.ID
	b.mu.Unlock()
	slog.Info("logged in", "user", ready.User.Username)
}

func (b *Bot) onMessage(data json.RawMessage) {
	var msg gateway.MessageCreate
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("malformed MESSAGE_CREATE payload", "err", err)
		return
	}

	b.mu.Lock()
	self := b.selfID
	b.mu.Unlock()
	if msg.Author.ID == self || msg.Author.Bot {
		return
	}
	if len(msg.Content) <= 1 {
		return
	}

	switch msg.Content {
	case b.prefix + "activar":
		b.setPedantic(true)
		b.showStatus(msg)
		return
	case b.prefix + "desactivar":
		b.setPedantic(false)
		b.showStatus(msg)
		return
	case b.prefix + "ayuda":
		b.showHelp(msg)
		return
	}

	if !b.Pedantic() {
		return
	}
	b.checkSpelling(msg)
}

func (b *Bot) showStatus(msg gateway.MessageCreate) {
	reply := "Desactivado"
	if b.Pedantic() {
		reply = "Activado"
	}
	if err := b.rest.PostMessage(msg.ChannelID, reply, rest.AsReplyTo(msg.ID)); err != nil {
		slog.Warn("status reply failed", "channel", msg.ChannelID, "err", err)
	}
}

func (b *Bot) showHelp(msg gateway.MessageCreate) {
	help := fmt.Sprintf("Prefijo: %[1]s\n%[1]sactivar: Empieza ser pedantico.\n%[1]sdesactivar: Calla al pedantico", b.prefix)
	if err := b.rest.PostMessage(msg.ChannelID, help); err != nil {
		slog.Warn("help reply failed", "channel", msg.ChannelID, "err", err)
	}
}

// checkSpelling replies to the first misspelled word with its best
// correction and a button offering to add the word to the dictionary.
func (b *Bot) checkSpelling(msg gateway.MessageCreate) {
	for _, word := range strings.Split(strings.ReplaceAll(msg.Content, ",", ""), " ") {
		if word == "" {
			continue
		}
		candidates := b.corrector.SpellCheck(word)
		if len(candidates) == 0 || candidates[0] == word {
			continue
		}

		customID := uuid.NewString()
		b.mu.Lock()
		b.pending[customID] = word
		b.mu.Unlock()

		reply := fmt.Sprintf("Un error tipografico en la palabra *%s*, ¿quisiste decir *%s*?\nEscribe *%sayuda* para ver mas opciones.",
			word, candidates[0], b.prefix)

		err := b.rest.PostMessage(msg.ChannelID, reply,
			rest.AsReplyTo(msg.ID),
			rest.WithButtons(rest.NewButton("Agrega la palabra al diccionario.", customID)))
		if err != nil {
			slog.Warn("correction reply failed", "channel", msg.ChannelID, "err", err)
		}
		return
	}
}

func (b *Bot) onInteraction(data json.RawMessage) {
	var interaction gateway.InteractionCreate
	if err := json.Unmarshal(data, &interaction); err != nil {
		slog.Warn("malformed INTERACTION_CREATE payload", "err", err)
		return
	}

	b.mu.Lock()
	word, ok := b.pending[interaction.Data.CustomID]
	if ok {
		delete(b.pending, interaction.Data.CustomID)
	}
	b.mu.Unlock()

	if !ok {
		if err := b.rest.AckInteraction(interaction.ID, interaction.Token); err != nil {
			slog.Warn("interaction ack failed", "err", err)
		}
		return
	}

	if err := b.corrector.AddWord(word); err != nil {
		slog.Warn("adding word failed", "word", word, "err", err)
		return
	}
	if err := b.rest.RespondInteractionText(interaction.ID, interaction.Token,
		fmt.Sprintf("Se agrego %s al diccionario.", word)); err != nil {
		slog.Warn("interaction response failed", "err", err)
	}
	if interaction.Message.ID != "" {
		if err := b.rest.DeleteMessage(interaction.Message.ChannelID, interaction.Message.ID); err != nil {
			slog.Warn("deleting suggestion failed", "err", err)
		}
	}
}
