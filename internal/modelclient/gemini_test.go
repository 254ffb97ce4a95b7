// File: internal/modelclient/gemini_test.go
package modelclient

import (
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/xkilldash9x/cartographer-cli/api/schemas"
)

func TestBuildContentsMapsRolesAndImage(t *testing.T) {
	req := schemas.TurnRequest{
		History: []schemas.TurnMessage{
			{Role: schemas.RoleUser, Content: "explore the page"},
			{Role: schemas.RoleModel, Content: "<complete_task><result>done</result></complete_task>"},
		},
		Text:  "Continue.",
		Image: []byte{0x89, 0x50, 0x4e, 0x47},
	}

	contents := buildContents(req)
	require.Len(t, contents, 3)

	assert.Equal(t, genai.Role(genai.RoleUser), genai.Role(contents[0].Role))
	assert.Equal(t, genai.Role(genai.RoleModel), genai.Role(contents[1].Role))
	assert.Equal(t, genai.Role(genai.RoleUser), genai.Role(contents[2].Role))

	// The new user turn carries the text plus the inline PNG.
	require.Len(t, contents[2].Parts, 2)
	assert.Equal(t, "Continue.", contents[2].Parts[0].Text)
	require.NotNil(t, contents[2].Parts[1].InlineData)
	assert.Equal(t, "image/png", contents[2].Parts[1].InlineData.MIMEType)
}

func TestBuildContentsOmitsImagePartWhenAbsent(t *testing.T) {
	contents := buildContents(schemas.TurnRequest{Text: "hello"})
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, "hello", contents[0].Parts[0].Text)
}

func TestClassifyGeminiError(t *testing.T) {
	var perm *backoff.PermanentError

	err := classifyGeminiError(errors.New("400 Bad Request: invalid argument"))
	assert.ErrorAs(t, err, &perm)

	err = classifyGeminiError(errors.New("prompt was blocked by safety settings"))
	assert.ErrorAs(t, err, &perm)

	err = classifyGeminiError(errors.New("503 Service Unavailable"))
	assert.False(t, errors.As(err, &perm), "transient transport failures must stay retryable")
}
