package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBadMAC(t *testing.T) {
	c := NewClassifier([]string{"515"})

	assert.Equal(t, ClassBenignMACRetry, c.Classify("Bad MAC error in decryption"))
	assert.Equal(t, ClassBenignMACRetry, c.Classify("failed to decrypt message from session"))
}

func TestClassifyTransientStreamCode(t *testing.T) {
	c := NewClassifier([]string{"515", "stream:error"})

	assert.Equal(t, ClassBenignStreamReset, c.Classify("515"))
	assert.Equal(t, ClassBenignStreamReset, c.Classify("<stream:error code=515/>"))
}

func TestClassifyFatal(t *testing.T) {
	c := NewClassifier([]string{"515"})

	assert.Equal(t, ClassFatal, c.Classify("connection refused"))
	assert.Equal(t, ClassFatal, c.Classify("401"))
}

func TestIsTransientStreamCode(t *testing.T) {
	c := NewClassifier([]string{"515"})

	assert.True(t, c.IsTransientStreamCode("515"))
	assert.False(t, c.IsTransientStreamCode("401"))
	assert.False(t, c.IsTransientStreamCode(""))
}

func TestIsTransientStreamCodeEmptySet(t *testing.T) {
	c := NewClassifier(nil)

	assert.False(t, c.IsTransientStreamCode("515"))
}

func TestJIDHelpers(t *testing.T) {
	assert.Equal(t, "5511999887766", NormalizePhone("+55 (11) 99988-7766"))
	assert.Equal(t, "5511999887766@s.whatsapp.net", FormatUserJID("+5511999887766"))
	assert.Equal(t, "", FormatUserJID("abc"))

	assert.Equal(t, "123456@g.us", FormatGroupJID("123456"))
	assert.Equal(t, "123456@g.us", FormatGroupJID("123456@g.us"))
	assert.Equal(t, "123456@g.us", FormatGroupJID("123456@s.whatsapp.net"))

	assert.True(t, IsGroupJID("123456@g.us"))
	assert.False(t, IsGroupJID("123456@s.whatsapp.net"))
}
