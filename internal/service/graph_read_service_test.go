package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphReadMediaInfo(t *testing.T) {
	svc := NewGraphReadService(connectedAccount(t), &graphStub{}, testSecretKey)

	media, err := svc.MediaInfo(context.Background(), 7, "media-1")
	require.NoError(t, err)
	assert.Equal(t, "media-1", media.ID)
}

func TestGraphReadMediaInfoRequiresID(t *testing.T) {
	svc := NewGraphReadService(connectedAccount(t), &graphStub{}, testSecretKey)

	_, err := svc.MediaInfo(context.Background(), 7, "")

	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestGraphReadMediaInfoNoConnectedAccount(t *testing.T) {
	svc := NewGraphReadService(&accountRepoStub{}, &graphStub{}, testSecretKey)

	_, err := svc.MediaInfo(context.Background(), 7, "media-1")

	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestGraphReadAccountID(t *testing.T) {
	svc := NewGraphReadService(connectedAccount(t), &graphStub{accountID: "acct-42"}, testSecretKey)

	accountID, err := svc.AccountID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "acct-42", accountID)
}
