package bot

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"pedantic/rest"
)

// fakeMessenger records every REST call, expanding message opts the same
// way the real client does.
type fakeMessenger struct {
	mu       sync.Mutex
	posts    []map[string]any
	deleted  []string
	acks     []string
	respText []string
}

func (f *fakeMessenger) PostMessage(channelID, content string, opts ...rest.MessageOpt) error {
	payload := map[string]any{"channel": channelID, "content": content}
	for _, opt := range opts {
		opt(payload)
	}
	f.mu.Lock()
	f.posts = append(f.posts, payload)
	f.mu.Unlock()
	return nil
}

func (f *fakeMessenger) DeleteMessage(channelID, messageID string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, channelID+"/"+messageID)
	f.mu.Unlock()
	return nil
}

func (f *fakeMessenger) AckInteraction(id, token string) error {
	f.mu.Lock()
	f.acks = append(f.acks, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeMessenger) RespondInteractionText(id, token, content string) error {
	f.mu.Lock()
	f.respText = append(f.respText, content)
	f.mu.Unlock()
	return nil
}

// fakeCorrector corrects according to a fixed table; everything else is
// considered spelled right.
type fakeCorrector struct {
	fixes map[string]string
	added []string
}

func (f *fakeCorrector) SpellCheck(word string) []string {
	if fix, ok := f.fixes[word]; ok {
		return []string{fix, word}
	}
	return []string{word}
}

func (f *fakeCorrector) AddWord(word string) error {
	f.added = append(f.added, word)
	return nil
}

func messageJSON(id, channel, authorID, content string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":%q,"channel_id":%q,"content":%q,"author":{"id":%q,"username":"someone"}}`,
		id, channel, content, authorID))
}

func newTestBot() (*Bot, *fakeCorrector, *fakeMessenger) {
	c := &fakeCorrector{fixes: map[string]string{"hoal": "hola"}}
	m := &fakeMessenger{}
	b := New("=>", c, m)
	b.onReady(json.RawMessage(`{"session_id":"s","user":{"id":"bot-id","username":"pedantic"}}`))
	return b, c, m
}

func TestMisspellingGetsCorrectionReplyWithButton(t *testing.T) {
	b, _, m := newTestBot()

	b.onMessage(messageJSON("msg-1", "chan-1", "user-1", "hoal mundo"))

	if len(m.posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(m.posts))
	}
	post := m.posts[0]
	content := post["content"].(string)
	if !strings.Contains(content, "*hoal*") || !strings.Contains(content, "*hola*") {
		t.Fatalf("reply %q does not mention the typo and the fix", content)
	}
	ref := post["message_reference"].(map[string]string)
	if ref["message_id"] != "msg-1" {
		t.Fatalf("reply does not reference the offending message: %v", ref)
	}
	if _, ok := post["components"]; !ok {
		t.Fatal("reply carries no add-to-dictionary button")
	}
}

func TestOnlyFirstMisspellingIsReported(t *testing.T) {
	b, _, m := newTestBot()
	b.corrector.(*fakeCorrector).fixes["mundoo"] = "mundo"

	b.onMessage(messageJSON("msg-1", "chan-1", "user-1", "hoal mundoo"))

	if len(m.posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(m.posts))
	}
}

func TestOwnMessagesAreIgnored(t *testing.T) {
	b, _, m := newTestBot()

	b.onMessage(messageJSON("msg-1", "chan-1", "bot-id", "hoal"))

	if len(m.posts) != 0 {
		t.Fatalf("the bot replied to itself: %v", m.posts)
	}
}

func TestBotMessagesAreIgnored(t *testing.T) {
	b, _, m := newTestBot()

	b.onMessage(json.RawMessage(
		`{"id":"m","channel_id":"c","content":"hoal","author":{"id":"other-bot","bot":true}}`))

	if len(m.posts) != 0 {
		t.Fatalf("the bot replied to another bot: %v", m.posts)
	}
}

func TestDeactivateSilencesCorrections(t *testing.T) {
	b, _, m := newTestBot()

	b.onMessage(messageJSON("msg-1", "chan-1", "user-1", "=>desactivar"))
	if !strings.Contains(m.posts[0]["content"].(string), "Desactivado") {
		t.Fatalf("status reply %v", m.posts[0])
	}
	if b.Pedantic() {
		t.Fatal("still pedantic after desactivar")
	}

	b.onMessage(messageJSON("msg-2", "chan-1", "user-1", "hoal"))
	if len(m.posts) != 1 {
		t.Fatal("corrected while deactivated")
	}

	b.onMessage(messageJSON("msg-3", "chan-1", "user-1", "=>activar"))
	if !b.Pedantic() {
		t.Fatal("not pedantic after activar")
	}
	b.onMessage(messageJSON("msg-4", "chan-1", "user-1", "hoal"))
	if len(m.posts) != 3 {
		t.Fatalf("got %d posts, want status+status+correction", len(m.posts))
	}
}

func TestHelpCommand(t *testing.T) {
	b, _, m := newTestBot()

	b.onMessage(messageJSON("msg-1", "chan-1", "user-1", "=>ayuda"))

	if len(m.posts) != 1 || !strings.Contains(m.posts[0]["content"].(string), "Prefijo: =>") {
		t.Fatalf("help reply: %v", m.posts)
	}
}

func TestInteractionAddsWordAndCleansUp(t *testing.T) {
	b, c, m := newTestBot()

	b.onMessage(messageJSON("msg-1", "chan-1", "user-1", "hoal"))

	var customID string
	b.mu.Lock()
	for id := range b.pending {
		customID = id
	}
	b.mu.Unlock()
	if customID == "" {
		t.Fatal("no pending interaction recorded")
	}

	b.onInteraction(json.RawMessage(fmt.Sprintf(
		`{"id":"int-1","token":"tkn","data":{"custom_id":%q},"message":{"id":"sugg-1","channel_id":"chan-1"}}`,
		customID)))

	if len(c.added) != 1 || c.added[0] != "hoal" {
		t.Fatalf("added words %v, want [hoal]", c.added)
	}
	if len(m.respText) != 1 || !strings.Contains(m.respText[0], "hoal") {
		t.Fatalf("confirmation %v", m.respText)
	}
	if len(m.deleted) != 1 || m.deleted[0] != "chan-1/sugg-1" {
		t.Fatalf("deleted %v, want the suggestion message", m.deleted)
	}

	// The button is single-use.
	b.onInteraction(json.RawMessage(fmt.Sprintf(
		`{"id":"int-2","token":"tkn","data":{"custom_id":%q}}`, customID)))
	if len(m.acks) != 1 {
		t.Fatalf("second click should only ack, got acks %v", m.acks)
	}
}

func TestUnknownInteractionIsAcked(t *testing.T) {
	b, _, m := newTestBot()

	b.onInteraction(json.RawMessage(`{"id":"int-9","token":"tkn","data":{"custom_id":"nope"}}`))

	if len(m.acks) != 1 || m.acks[0] != "int-9" {
		t.Fatalf("acks %v, want [int-9]", m.acks)
	}
}
