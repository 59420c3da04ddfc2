package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRedactsSensitiveKeys(t *testing.T) {
	v := Map(map[string]Value{
		"username":      String("student01"),
		"password":      String("hunter2"),
		"PasswordHash":  String("abc123"),
		"apiKey":        String("sk-xxx"),
		"refresh_token": String("tok"),
		"clientSecret":  String("sec"),
	})

	out := Sanitize(v)

	username, _ := out.Get("username")
	assert.Equal(t, "student01", username.StringValue())

	for _, key := range []string{"password", "PasswordHash", "apiKey", "refresh_token", "clientSecret"} {
		item, ok := out.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, "[REDACTED]", item.StringValue(), key)
	}
}

func TestSanitizeRecursesThroughListsAndMaps(t *testing.T) {
	v := Map(map[string]Value{
		"accounts": List(
			Map(map[string]Value{"id": Number(1), "token": String("t1")}),
			Map(map[string]Value{"id": Number(2), "nested": Map(map[string]Value{"secretPin": String("0000")})}),
		),
	})

	out := Sanitize(v)

	accounts, _ := out.Get("accounts")
	require.Equal(t, KindList, accounts.Kind())

	first := accounts.ListValue()[0]
	token, _ := first.Get("token")
	assert.Equal(t, "[REDACTED]", token.StringValue())

	second := accounts.ListValue()[1]
	nested, _ := second.Get("nested")
	pin, _ := nested.Get("secretPin")
	assert.Equal(t, "[REDACTED]", pin.StringValue())
}

func TestSanitizePassesThroughScalarsAndSentinels(t *testing.T) {
	assert.True(t, Sanitize(Null()).IsNull())
	assert.Equal(t, 42.0, Sanitize(Number(42)).NumberValue())
	assert.Equal(t, KindPreviousValue, Sanitize(PreviousValue()).Kind())
	assert.Equal(t, KindRemovedField, Sanitize(RemovedField()).Kind())
}

func TestSanitizeRedactsWholeSubtreeUnderSensitiveKey(t *testing.T) {
	v := Map(map[string]Value{
		"keyMaterial": Map(map[string]Value{"private": String("pem")}),
	})

	out := Sanitize(v)
	item, _ := out.Get("keyMaterial")
	assert.Equal(t, KindString, item.Kind())
	assert.Equal(t, "[REDACTED]", item.StringValue())
}
