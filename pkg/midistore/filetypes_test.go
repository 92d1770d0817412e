package midistore_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cdbmc/midistore/pkg/midistore"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name    string
		kind    midistore.FileKind
		file    string
		size    int64
		wantErr bool
	}{
		{"midi file", midistore.FileKindScore, "song.mid", 1024, false},
		{"zipped score pack", midistore.FileKindScore, "pack.zip", 1024, false},
		{"rar score pack", midistore.FileKindScore, "pack.rar", 1024, false},
		{"uppercase extension", midistore.FileKindScore, "SONG.MID", 1024, false},
		{"score at the ceiling", midistore.FileKindScore, "big.mid", 150 << 20, false},
		{"score over the ceiling", midistore.FileKindScore, "big.mid", 150<<20 + 1, true},
		{"score with audio extension", midistore.FileKindScore, "song.mp3", 1024, true},
		{"video mp4", midistore.FileKindVideo, "clip.mp4", 1024, false},
		{"video webm", midistore.FileKindVideo, "clip.webm", 1024, false},
		{"video over the ceiling", midistore.FileKindVideo, "clip.mov", 150<<20 + 1, true},
		{"audio flac", midistore.FileKindAudio, "take.flac", 1024, false},
		{"audio at the ceiling", midistore.FileKindAudio, "take.wav", 50 << 20, false},
		{"audio over the ceiling", midistore.FileKindAudio, "take.mp3", 50<<20 + 1, true},
		{"audio with video extension", midistore.FileKindAudio, "take.mp4", 1024, true},
		{"unknown kind", midistore.FileKind("image"), "cover.png", 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := midistore.ValidateFile("file", midistore.FileUpload{
				Kind: tt.kind,
				Name: tt.file,
				Size: tt.size,
				Data: strings.NewReader("x"),
			})
			if tt.wantErr {
				assert.True(t, midistore.IsValidation(err), "expected validation error, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRuleFor(t *testing.T) {
	rule, ok := midistore.RuleFor(midistore.FileKindAudio)
	assert.True(t, ok)
	assert.Equal(t, int64(50<<20), rule.MaxBytes)
	assert.Contains(t, rule.Extensions, ".flac")

	_, ok = midistore.RuleFor(midistore.FileKind("image"))
	assert.False(t, ok)
}

func TestDownloadFilename(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		stored string
		kind   midistore.FileKind
		want   string
	}{
		{"title gains stored extension", "Etude", "upload.mid", midistore.FileKindScore, "Etude.mid"},
		{"title already has extension", "Etude.mid", "upload.mid", midistore.FileKindScore, "Etude.mid"},
		{"zip pack keeps zip", "Pack", "bundle.zip", midistore.FileKindScore, "Pack.zip"},
		{"video companion", "Etude", "render.mp4", midistore.FileKindVideo, "Etude.mp4"},
		{"stored name case ignored", "Etude", "RENDER.WEBM", midistore.FileKindVideo, "Etude.webm"},
		{"unrecognized stored extension falls back", "Etude", "mystery.bin", midistore.FileKindAudio, "Etude.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, midistore.DownloadFilename(tt.title, tt.stored, tt.kind))
		})
	}
}
