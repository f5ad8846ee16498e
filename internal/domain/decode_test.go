package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropside/feed-engine/internal/store"
)

func postDoc(id string, data map[string]any) *store.Document {
	return &store.Document{ID: id, Data: data}
}

func TestDecodePostRejectsMalformedDocuments(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	author := map[string]any{"id": "u1", "name": "Alma"}

	for _, tc := range []struct {
		name string
		data map[string]any
	}{
		{"missing author", map[string]any{"createdAt": createdAt, "body": "hi"}},
		{"author without id", map[string]any{"author": map[string]any{"name": "Alma"}, "createdAt": createdAt}},
		{"missing createdAt", map[string]any{"author": author, "body": "hi"}},
		{"media item without url", map[string]any{
			"author": author, "createdAt": createdAt,
			"media": []any{map[string]any{"kind": "photo"}},
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodePost(postDoc("p1", tc.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

func TestDecodePostFanOutSnapshotOverridesID(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, err := DecodePost(postDoc("feed-entry-9", map[string]any{
		"author":    map[string]any{"id": "u1", "name": "Alma"},
		"postId":    "p42",
		"body":      "snapshot",
		"createdAt": createdAt,
		"active":    true,
	}))
	require.NoError(t, err)
	assert.Equal(t, "p42", p.ID)
	assert.Equal(t, PostKindNormal, p.Kind)
}

func TestDecodePostOptionalSections(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, err := DecodePost(postDoc("p1", map[string]any{
		"author":    map[string]any{"id": "u1", "name": "Alma", "role": "expert", "verified": true},
		"kind":      "question",
		"body":      "what is eating my kale?",
		"createdAt": createdAt,
		"media": []any{
			map[string]any{"url": "https://cdn.example/1.jpg", "kind": "photo", "thumbnailUrl": "https://cdn.example/1_t.jpg"},
		},
		"voiceCaption": map[string]any{"url": "https://cdn.example/v.ogg", "durationSec": int64(14)},
		"location":     map[string]any{"name": "North field", "lat": 52.1, "lng": 4.3},
		"question": map[string]any{
			"targetExpertise": "pests",
			"answered":        true,
			"bestAnswerId":    "c7",
		},
	}))
	require.NoError(t, err)

	assert.Equal(t, PostKindQuestion, p.Kind)
	require.Len(t, p.Media, 1)
	assert.Equal(t, "https://cdn.example/1_t.jpg", p.Media[0].ThumbnailURL)
	require.NotNil(t, p.VoiceCaption)
	assert.EqualValues(t, 14, p.VoiceCaption.DurationSec)
	require.NotNil(t, p.Location)
	require.NotNil(t, p.Location.Lat)
	assert.InDelta(t, 52.1, *p.Location.Lat, 1e-9)
	require.NotNil(t, p.Question)
	assert.True(t, p.Question.Answered)
	assert.Equal(t, "c7", p.Question.BestAnswerID)
}

func TestDecodeStoryDefaultsAndValidation(t *testing.T) {
	expiresAt := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	author := map[string]any{"id": "u1", "name": "Alma"}

	_, err := DecodeStory(postDoc("s1", map[string]any{
		"author": author, "expiresAt": expiresAt,
	}))
	assert.ErrorIs(t, err, ErrMalformedDocument)

	_, err = DecodeStory(postDoc("s1", map[string]any{
		"author": author, "media": map[string]any{"url": "https://cdn.example/s.jpg"},
	}))
	assert.ErrorIs(t, err, ErrMalformedDocument)

	s, err := DecodeStory(postDoc("s1", map[string]any{
		"author":     author,
		"media":      map[string]any{"url": "https://cdn.example/s.jpg"},
		"expiresAt":  expiresAt,
		"visibility": "friends-of-friends",
	}))
	require.NoError(t, err)
	// Unknown visibility values fall back to public rather than widening
	// followers-only content.
	assert.Equal(t, StoryVisibilityPublic, s.Visibility)

	s, err = DecodeStory(postDoc("s2", map[string]any{
		"author":     author,
		"media":      map[string]any{"url": "https://cdn.example/s.jpg"},
		"expiresAt":  expiresAt,
		"visibility": string(StoryVisibilityFollowers),
		"overlay":    map[string]any{"text": "harvest day", "x": 0.5, "y": 0.8},
	}))
	require.NoError(t, err)
	assert.Equal(t, StoryVisibilityFollowers, s.Visibility)
	require.NotNil(t, s.Overlay)
	assert.Equal(t, "harvest day", s.Overlay.Text)
}

func TestDecodeCommentRequiresContent(t *testing.T) {
	author := map[string]any{"id": "u1", "name": "Alma"}

	_, err := DecodeComment(postDoc("c1", map[string]any{"text": "orphan"}))
	assert.ErrorIs(t, err, ErrMalformedDocument)

	_, err = DecodeComment(postDoc("c1", map[string]any{"author": author}))
	assert.ErrorIs(t, err, ErrMalformedDocument)

	c, err := DecodeComment(postDoc("c1", map[string]any{
		"author": author,
		"voice":  map[string]any{"url": "https://cdn.example/v.ogg", "durationSec": int64(9)},
		"active": true,
	}))
	require.NoError(t, err)
	assert.Empty(t, c.Text)
	require.NotNil(t, c.Voice)
	assert.EqualValues(t, 9, c.Voice.DurationSec)
}

func TestDecodeProfileRequiresName(t *testing.T) {
	_, err := DecodeProfile(postDoc("u1", map[string]any{"handle": "@alma"}))
	assert.ErrorIs(t, err, ErrMalformedDocument)

	p, err := DecodeProfile(postDoc("u1", map[string]any{
		"name": "Alma", "handle": "@alma", "role": "expert", "verified": true,
		"followersCount": int64(3), "followingCount": int64(5),
	}))
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)
	assert.True(t, p.Verified)
	assert.EqualValues(t, 3, p.FollowersCount)
}
