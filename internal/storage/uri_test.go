package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemeClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		uri     string
		local   bool
		content bool
		remote  bool
	}{
		{uri: "/music/a.mp3", local: true},
		{uri: `C:\Music\a.mp3`, local: true},
		{uri: "file:///music/a.mp3", local: true},
		{uri: "content://com.android.externalstorage.documents/document/primary%3AMusic%2Fa.mp3", content: true},
		{uri: "https://cdn.example.com/a.mp3", remote: true},
		{uri: ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.local, IsLocalURI(tc.uri), tc.uri)
		assert.Equal(t, tc.content, IsContentURI(tc.uri), tc.uri)
		assert.Equal(t, tc.remote, IsRemoteURI(tc.uri), tc.uri)
	}
}

func TestDisplayNameDecodesDocumentIDs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a.mp3", DisplayName("content://x/document/primary%3AMusic%2FRock%2Fa.mp3"))
	assert.Equal(t, "b.flac", DisplayName("/music/b.flac"))
	assert.Equal(t, "Music", DisplayName("content://x/tree/primary%3AMusic"))
}

func TestFolderPathSegment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Music/Rock", FolderPathSegment("content://com.android.externalstorage.documents/tree/primary%3AMusic%2FRock"))
	assert.Equal(t, "Music", FolderPathSegment("content://x/tree/primary%3AMusic/document/primary%3AMusic"))
}

func TestWithinFolder(t *testing.T) {
	t.Parallel()

	folder := "content://x/tree/primary%3AMusic"
	assert.True(t, WithinFolder("content://x/tree/primary%3AMusic/document/primary%3AMusic%2Fa.mp3", folder))
	assert.False(t, WithinFolder("content://x/tree/primary%3APodcasts/document/primary%3APodcasts%2Fa.mp3", folder))

	assert.True(t, WithinFolder("/data/Music/Rock/a.mp3", "/data/Music"))
	assert.False(t, WithinFolder("/data/Music2/a.mp3", "/data/Music"))
}
