package services_test

import (
	"testing"

	"github.com/bionicotaku/lingo-services-posts/internal/models/po"
	"github.com/bionicotaku/lingo-services-posts/internal/services"

	"github.com/google/uuid"
)

func postBy(creator uuid.UUID, depth po.ThreadDepth) *po.VideoPost {
	p := &po.VideoPost{
		PostID:    uuid.New(),
		CreatorID: creator,
		Depth:     depth,
	}
	p.ThreadID = p.PostID
	return p
}

func containsID(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func TestResolveRecipientsChildBroadcastsToParticipants(t *testing.T) {
	rootCreator := uuid.New()
	participantA := uuid.New()
	participantB := uuid.New()
	actor := uuid.New()

	root := postBy(rootCreator, po.DepthThread)
	got := services.ResolveRecipients(services.ThreadPosition{
		Parent:       root,
		Root:         root,
		Participants: []uuid.UUID{rootCreator, participantA, participantB, actor},
		NewDepth:     po.DepthChild,
	}, actor)

	if len(got) != 3 {
		t.Fatalf("recipients = %v, want 3 entries", got)
	}
	for _, want := range []uuid.UUID{rootCreator, participantA, participantB} {
		if !containsID(got, want) {
			t.Fatalf("recipients %v missing %s", got, want)
		}
	}
	if containsID(got, actor) {
		t.Fatalf("actor %s must never receive their own notification", actor)
	}
}

func TestResolveRecipientsStepchildNarrowsToParentAndRoot(t *testing.T) {
	rootCreator := uuid.New()
	childCreator := uuid.New()
	bystander := uuid.New()
	actor := uuid.New()

	root := postBy(rootCreator, po.DepthThread)
	child := postBy(childCreator, po.DepthChild)

	got := services.ResolveRecipients(services.ThreadPosition{
		Parent:       child,
		Root:         root,
		Participants: []uuid.UUID{rootCreator, childCreator, bystander},
		NewDepth:     po.DepthStepchild,
	}, actor)

	if len(got) != 2 {
		t.Fatalf("recipients = %v, want exactly root creator and parent creator", got)
	}
	if !containsID(got, rootCreator) || !containsID(got, childCreator) {
		t.Fatalf("recipients %v must contain root creator %s and parent creator %s", got, rootCreator, childCreator)
	}
	if containsID(got, bystander) {
		t.Fatalf("deep reply must not broadcast to bystander %s", bystander)
	}
}

func TestResolveRecipientsActorIsRootCreator(t *testing.T) {
	actor := uuid.New()
	other := uuid.New()

	root := postBy(actor, po.DepthThread)
	got := services.ResolveRecipients(services.ThreadPosition{
		Parent:       root,
		Root:         root,
		Participants: []uuid.UUID{actor, other},
		NewDepth:     po.DepthChild,
	}, actor)

	if len(got) != 1 || got[0] != other {
		t.Fatalf("recipients = %v, want only %s", got, other)
	}
}

func TestResolveRecipientsDeduplicates(t *testing.T) {
	rootCreator := uuid.New()
	repeat := uuid.New()
	actor := uuid.New()

	root := postBy(rootCreator, po.DepthThread)
	got := services.ResolveRecipients(services.ThreadPosition{
		Parent:       root,
		Root:         root,
		Participants: []uuid.UUID{rootCreator, repeat, repeat, repeat},
		NewDepth:     po.DepthChild,
	}, actor)

	if len(got) != 2 {
		t.Fatalf("recipients = %v, want deduplicated set of 2", got)
	}
}

func TestResolveRecipientsMissingRoot(t *testing.T) {
	actor := uuid.New()
	parentCreator := uuid.New()
	parent := postBy(parentCreator, po.DepthChild)

	got := services.ResolveRecipients(services.ThreadPosition{
		Parent:   parent,
		Root:     nil,
		NewDepth: po.DepthStepchild,
	}, actor)

	if len(got) != 1 || got[0] != parentCreator {
		t.Fatalf("recipients = %v, want only parent creator %s", got, parentCreator)
	}
}

func TestResolveMentions(t *testing.T) {
	actor := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	got := services.ResolveMentions([]uuid.UUID{alice, bob, alice, actor, uuid.Nil}, actor)
	if len(got) != 2 {
		t.Fatalf("mentions = %v, want 2 targets", got)
	}
	if !containsID(got, alice) || !containsID(got, bob) {
		t.Fatalf("mentions %v must contain %s and %s", got, alice, bob)
	}
	if containsID(got, actor) {
		t.Fatalf("self mention must be suppressed")
	}
}

func TestResolveMentionsEmpty(t *testing.T) {
	actor := uuid.New()
	if got := services.ResolveMentions(nil, actor); len(got) != 0 {
		t.Fatalf("mentions = %v, want empty", got)
	}
	if got := services.ResolveMentions([]uuid.UUID{actor}, actor); len(got) != 0 {
		t.Fatalf("self-only mentions = %v, want empty", got)
	}
}
