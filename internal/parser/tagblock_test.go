package parser

import (
	"reflect"
	"testing"
)

func TestParseTagBlockBasic(t *testing.T) {
	block := "<NAME:Bob_Smith>, <SPECIES:HUMAN>, <SPECIES:TALL>"

	char := newTestParser().ParseTagBlock(block, "test-book")
	if char == nil {
		t.Fatal("expected a character")
	}
	if char.Name != "Bob Smith" {
		t.Errorf("name = %q, want %q", char.Name, "Bob Smith")
	}
	if char.Source != "test-book" {
		t.Errorf("source = %q", char.Source)
	}
	if got := char.Tags.Get("SPECIES"); !reflect.DeepEqual(got, []string{"HUMAN", "TALL"}) {
		t.Errorf("SPECIES = %v", got)
	}
}

func TestParseTagBlockDeduplicatesValues(t *testing.T) {
	block := "<NAME:Ann>, <TRAIT:BRAVE>, <TRAIT:BRAVE>, <trait:BRAVE>"

	char := newTestParser().ParseTagBlock(block, "book")
	if char == nil {
		t.Fatal("expected a character")
	}
	// Categories are upper-cased, so the lower-cased token merges and its
	// repeated value deduplicates.
	if got := char.Tags.Get("TRAIT"); !reflect.DeepEqual(got, []string{"BRAVE"}) {
		t.Errorf("TRAIT = %v", got)
	}
}

func TestParseTagBlockValueUnderscores(t *testing.T) {
	char := newTestParser().ParseTagBlock("<NAME:Ann>, <BUILD:VERY_TALL>", "book")
	if char == nil {
		t.Fatal("expected a character")
	}
	if got := char.Tags.Get("BUILD"); !reflect.DeepEqual(got, []string{"VERY TALL"}) {
		t.Errorf("BUILD = %v", got)
	}
}

func TestParseTagBlockRequiresNameAndOneTag(t *testing.T) {
	p := newTestParser()

	if char := p.ParseTagBlock("<SPECIES:HUMAN>, <TRAIT:BRAVE>", "book"); char != nil {
		t.Errorf("block without NAME yielded %v", char)
	}
	if char := p.ParseTagBlock("<NAME:Bob>", "book"); char != nil {
		t.Errorf("block with only NAME yielded %v", char)
	}
}

func TestParseTagBlockSkipsMalformedTokens(t *testing.T) {
	block := "<NAME:Ann>, not a tag, <BROKEN, <SPECIES:ELF>"

	char := newTestParser().ParseTagBlock(block, "book")
	if char == nil {
		t.Fatal("expected a character")
	}
	if char.Tags.Len() != 1 {
		t.Errorf("categories = %v", char.Tags.Categories())
	}
}

func TestExtractTagBlocks(t *testing.T) {
	text := "prose before <BunnymoTags><NAME:A>, <X:1></BunnymoTags> middle " +
		"<bunnymotags><NAME:B>, <Y:2></bunnymotags> after"

	blocks := ExtractTagBlocks(text)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0] != "<NAME:A>, <X:1>" {
		t.Errorf("block[0] = %q", blocks[0])
	}

	if blocks := ExtractTagBlocks("no blocks here"); blocks != nil {
		t.Errorf("expected nil, got %v", blocks)
	}
}

func TestParseTagBlocksEndToEnd(t *testing.T) {
	text := "<BunnymoTags><NAME:Alice>, <SPECIES:ELF></BunnymoTags>\n" +
		"<BunnymoTags><SPECIES:ORPHANED></BunnymoTags>"

	chars := newTestParser().ParseTagBlocks(text, "book")
	if len(chars) != 1 {
		t.Fatalf("expected 1 character (second block has no NAME), got %d", len(chars))
	}
	if chars[0].Name != "Alice" {
		t.Errorf("name = %q", chars[0].Name)
	}
}

func TestExtractCommentTags(t *testing.T) {
	tags := ExtractCommentTags("definitions for <species> and <dere_type> tags")
	if !reflect.DeepEqual(tags, []string{"species", "dere_type"}) {
		t.Errorf("tags = %v", tags)
	}

	if tags := ExtractCommentTags("plain comment"); tags != nil {
		t.Errorf("expected nil, got %v", tags)
	}
}
