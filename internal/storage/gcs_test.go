package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	at := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "audio/2024/03/09/abc.mp3", ObjectName("audio", "abc", "Talk.MP3", at))
	assert.Equal(t, "audio/2024/03/09/abc", ObjectName("audio", "abc", "noext", at))
}
