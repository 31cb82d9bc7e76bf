package model

import "testing"

func TestRequest_ConcatOrdersSectionsAndSkipsEmpty(t *testing.T) {
	req := &Request{
		SystemPrompt:    "system",
		History:         []string{"turn1", "turn2"},
		NodeInstruction: "do the thing",
		MemoryContext:   []string{"remembered fact"},
		Steering:        []string{"slow down"},
		UserMessage:     "hello",
	}
	got := req.Concat()
	want := "system\n\nturn1\n\nturn2\n\nhello\n\ndo the thing\n\nremembered fact\n\nslow down"
	if got != want {
		t.Fatalf("Concat() = %q, want %q", got, want)
	}
}

func TestRequest_ConcatSkipsEmptySections(t *testing.T) {
	req := &Request{UserMessage: "hello"}
	if got := req.Concat(); got != "hello" {
		t.Fatalf("Concat() = %q, want %q", got, "hello")
	}
}
