package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/mentalcompass/platform/internal/core/domain"
)

func TestAppendTurnsUpdate(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	turns := []domain.ChatTurn{
		{Role: domain.TurnUser, Content: "hi"},
		{Role: domain.TurnAssistant, Content: "hello"},
	}

	got := appendTurnsUpdate(turns, "a-1", at)

	push, ok := got["$push"].(bson.M)
	if !ok {
		t.Fatalf("missing $push: %v", got)
	}
	each, ok := push["data.messages"].(bson.M)
	if !ok {
		t.Fatalf("turns must be pushed onto data.messages, got %v", push)
	}
	if pushed, _ := each["$each"].([]domain.ChatTurn); len(pushed) != 2 || pushed[1].Content != "hello" {
		t.Fatalf("unexpected pushed turns: %v", each["$each"])
	}
	if set, _ := got["$set"].(bson.M); set["updated_at"] != at {
		t.Fatalf("unexpected $set: %v", got["$set"])
	}
	if ins, _ := got["$setOnInsert"].(bson.M); ins["_id"] != "a-1" {
		t.Fatalf("unexpected $setOnInsert: %v", got["$setOnInsert"])
	}
}
