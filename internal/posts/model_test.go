package posts

import (
	"errors"
	"testing"
)

func TestParseCategoryDefaultsEmptyToJournal(t *testing.T) {
	category, err := ParseCategory("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if category != CategoryJournal {
		t.Fatalf("expected journal default, got %q", category)
	}
}

func TestParseCategoryAcceptsKnownValues(t *testing.T) {
	cases := map[string]Category{
		"journal": CategoryJournal,
		"archive": CategoryArchive,
		"notes":   CategoryNotes,
		"Journal": CategoryJournal,
		" notes ": CategoryNotes,
	}
	for raw, expected := range cases {
		category, err := ParseCategory(raw)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
		if category != expected {
			t.Fatalf("expected %q for %q, got %q", expected, raw, category)
		}
	}
}

func TestParseCategoryRejectsUnknownValue(t *testing.T) {
	if _, err := ParseCategory("poetry"); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected invalid category error, got %v", err)
	}
}

func TestParseStatusDefaultsEmptyToPublished(t *testing.T) {
	status, err := ParseStatus("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusPublished {
		t.Fatalf("expected published default, got %q", status)
	}
}

func TestParseStatusRejectsUnknownValue(t *testing.T) {
	if _, err := ParseStatus("archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected invalid status error, got %v", err)
	}
}

func TestNewPostIDRejectsEmptyInput(t *testing.T) {
	if _, err := NewPostID("   "); !errors.Is(err, ErrInvalidPostID) {
		t.Fatalf("expected invalid post id error, got %v", err)
	}
}

func TestApplyReadDefaultsFillsMissingEnums(t *testing.T) {
	record := Post{Category: "", Status: ""}
	record.applyReadDefaults()
	if record.Category != string(CategoryJournal) {
		t.Fatalf("expected journal category, got %q", record.Category)
	}
	if record.Status != string(StatusPublished) {
		t.Fatalf("expected published status, got %q", record.Status)
	}
}

func TestLikedBySurvivesRoundTrip(t *testing.T) {
	record := Post{}
	record.SetLikedBy([]string{"user-1", "user-2"})
	if record.Likes != 2 {
		t.Fatalf("expected like count 2, got %d", record.Likes)
	}
	likers := record.LikedBy()
	if len(likers) != 2 || likers[0] != "user-1" || likers[1] != "user-2" {
		t.Fatalf("unexpected likers: %#v", likers)
	}
}

func TestLikedByTreatsCorruptColumnAsEmpty(t *testing.T) {
	record := Post{LikedByJSON: "{not json"}
	if likers := record.LikedBy(); len(likers) != 0 {
		t.Fatalf("expected empty likers, got %#v", likers)
	}
}

func TestDraftValidateRejectsWhitespaceOnlyFields(t *testing.T) {
	draft := Draft{Title: "   ", Content: "body"}.normalize()
	if err := draft.validate(); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected empty title error, got %v", err)
	}

	draft = Draft{Title: "title", Content: "\n\t "}.normalize()
	if err := draft.validate(); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected empty content error, got %v", err)
	}
}
