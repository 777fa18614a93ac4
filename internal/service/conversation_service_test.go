package service

import (
	"context"
	"sync"
	"testing"

	"servio/marketplace-core/internal/apperr"
)

func TestResolveIsDirectionless(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	ab, err := env.conversations.Resolve(ctx, "user-b", "user-a")
	if err != nil {
		t.Fatal(err)
	}
	ba, err := env.conversations.Resolve(ctx, "user-a", "user-b")
	if err != nil {
		t.Fatal(err)
	}
	if ab.ID != ba.ID {
		t.Fatalf("resolve returned different conversations: %s vs %s", ab.ID, ba.ID)
	}
	if ab.Participant1ID != "user-a" || ab.Participant2ID != "user-b" {
		t.Fatalf("participants not in canonical order: (%s, %s)", ab.Participant1ID, ab.Participant2ID)
	}
}

func TestResolveSelfFails(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.conversations.Resolve(context.Background(), "user-a", "user-a")
	if !apperr.Is(err, apperr.KindInvalidArgument) {
		t.Fatalf("self-resolve: got %v, want InvalidArgument", err)
	}
}

func TestResolveConcurrent(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "user-a", "user-b"
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := env.conversations.Resolve(ctx, a, b)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got conversation %s, caller 0 got %s", i, ids[i], ids[0])
		}
	}
}

func TestSendMessageRequiresParticipant(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	conv, err := env.conversations.Resolve(ctx, "user-a", "user-b")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.conversations.SendMessage(ctx, conv.ID, "outsider", "hello"); !apperr.Is(err, apperr.KindNotAuthorized) {
		t.Fatalf("outsider send: got %v, want NotAuthorized", err)
	}
	if _, err := env.conversations.SendMessage(ctx, conv.ID, "user-a", "   "); !apperr.Is(err, apperr.KindInvalidArgument) {
		t.Fatalf("blank send: got %v, want InvalidArgument", err)
	}
	if _, err := env.conversations.SendMessage(ctx, "no-such-conversation", "user-a", "hello"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("missing conversation: got %v, want NotFound", err)
	}
}

func TestListMessagesOrderedAscending(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	conv, err := env.conversations.Resolve(ctx, "user-a", "user-b")
	if err != nil {
		t.Fatal(err)
	}
	for _, content := range []string{"first", "second", "third"} {
		if _, err := env.conversations.SendMessage(ctx, conv.ID, "user-a", content); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := env.conversations.ListMessages(ctx, conv.ID, "user-b", 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Content != want {
			t.Fatalf("message %d = %q, want %q", i, msgs[i].Content, want)
		}
	}
	if !msgs[0].CreatedAt.Before(msgs[2].CreatedAt) {
		t.Fatal("timestamps not ascending")
	}

	page, err := env.conversations.ListMessages(ctx, conv.ID, "user-b", 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Content != "second" {
		t.Fatalf("limit 2 returned %d messages starting with %q, want the latest 2", len(page), page[0].Content)
	}
}

func TestMarkConversationReadIdempotent(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	conv, err := env.conversations.Resolve(ctx, "user-a", "user-b")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := env.conversations.SendMessage(ctx, conv.ID, "user-b", "ping"); err != nil {
			t.Fatal(err)
		}
	}
	// A reply from the reader must not be affected by their own mark-read.
	if _, err := env.conversations.SendMessage(ctx, conv.ID, "user-a", "pong"); err != nil {
		t.Fatal(err)
	}

	marked, err := env.conversations.MarkConversationRead(ctx, conv.ID, "user-a")
	if err != nil {
		t.Fatal(err)
	}
	if marked != 3 {
		t.Fatalf("marked %d messages, want 3", marked)
	}

	msgs, _ := env.conversations.ListMessages(ctx, conv.ID, "user-a", 0, "")
	for _, m := range msgs {
		wantRead := m.SenderID == "user-b"
		if m.IsRead != wantRead {
			t.Fatalf("message from %s: is_read = %v, want %v", m.SenderID, m.IsRead, wantRead)
		}
	}

	again, err := env.conversations.MarkConversationRead(ctx, conv.ID, "user-a")
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Fatalf("second mark-read marked %d messages, want 0", again)
	}

	if _, err := env.conversations.MarkConversationRead(ctx, conv.ID, "outsider"); !apperr.Is(err, apperr.KindNotAuthorized) {
		t.Fatalf("outsider mark-read: got %v, want NotAuthorized", err)
	}
}

func TestMarkAllReadSpansConversations(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	convB, _ := env.conversations.Resolve(ctx, "user-a", "user-b")
	convC, _ := env.conversations.Resolve(ctx, "user-a", "user-c")
	if _, err := env.conversations.SendMessage(ctx, convB.ID, "user-b", "hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.conversations.SendMessage(ctx, convC.ID, "user-c", "hi"); err != nil {
		t.Fatal(err)
	}

	marked, err := env.conversations.MarkAllRead(ctx, "user-a")
	if err != nil {
		t.Fatal(err)
	}
	if marked != 2 {
		t.Fatalf("marked %d messages, want 2", marked)
	}
	if again, _ := env.conversations.MarkAllRead(ctx, "user-a"); again != 0 {
		t.Fatalf("second mark-all-read marked %d, want 0", again)
	}
}

func TestListForUserNewestFirst(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	convB, _ := env.conversations.Resolve(ctx, "user-a", "user-b")
	convC, _ := env.conversations.Resolve(ctx, "user-a", "user-c")
	if _, err := env.conversations.SendMessage(ctx, convB.ID, "user-b", "bump"); err != nil {
		t.Fatal(err)
	}

	inbox, err := env.conversations.ListForUser(ctx, "user-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 2 {
		t.Fatalf("inbox has %d conversations, want 2", len(inbox))
	}
	if inbox[0].ID != convB.ID {
		t.Fatalf("most recently active conversation should sort first, got %s", inbox[0].ID)
	}
	_ = convC
}
