package swagger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestDocIsRegisteredAndValid(t *testing.T) {
	raw, err := swag.ReadDoc()
	require.NoError(t, err)

	var doc struct {
		BasePath string                     `json:"basePath"`
		Paths    map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "/api/v1", doc.BasePath)
	assert.Contains(t, doc.Paths, "/quests/{questId}/submissions/{submissionId}")
	assert.Contains(t, doc.Paths, "/student/rewards/{rewardId}/redeem")
}

func TestDocDocumentsConflictResponses(t *testing.T) {
	raw, err := swag.ReadDoc()
	require.NoError(t, err)

	var doc struct {
		Paths map[string]map[string]struct {
			Responses map[string]struct {
				Description string `json:"description"`
			} `json:"responses"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	verify := doc.Paths["/quests/{questId}/submissions/{submissionId}"]["patch"].Responses
	require.Contains(t, verify, "409")
	assert.Equal(t, "Submission already processed", verify["409"].Description)

	attend := doc.Paths["/student/attend-quest"]["post"].Responses
	require.Contains(t, attend, "409")
	assert.Equal(t, "Quest already attended or expired", attend["409"].Description)
}
