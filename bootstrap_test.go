package main

import (
	"bytes"
	"context"
	"testing"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/accounts"
	config "example.com/socialapi/internal/init"
	"example.com/socialapi/internal/metrics"
	"example.com/socialapi/internal/models"
	"example.com/socialapi/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPolicy(t *testing.T) {
	cfg := &config.Config{DefaultGroup: access.GroupViewers, AccountDeletePolicy: "restrict"}
	policy, dp, err := loadPolicy(cfg)
	require.NoError(t, err)
	assert.Equal(t, accounts.DeleteRestrict, dp)
	assert.True(t, policy.HasGroup(access.GroupAdmins))

	_, _, err = loadPolicy(&config.Config{DefaultGroup: "Nobody", AccountDeletePolicy: "cascade"})
	assert.ErrorContains(t, err, "DEFAULT_GROUP")

	_, _, err = loadPolicy(&config.Config{DefaultGroup: access.GroupViewers, AccountDeletePolicy: "shred"})
	assert.Error(t, err)

	_, _, err = loadPolicy(&config.Config{GroupsFile: "does-not-exist.yaml"})
	assert.Error(t, err)
}

func TestLoadPolicy_SampleGroupsFile(t *testing.T) {
	policy, _, err := loadPolicy(&config.Config{
		GroupsFile:          "config/groups.yaml",
		DefaultGroup:        access.GroupViewers,
		AccountDeletePolicy: "cascade",
	})
	require.NoError(t, err)
	assert.Equal(t, access.DefaultPolicy().Table(), policy.Table())
}

func TestRunSetupGroups_PrintsTable(t *testing.T) {
	var out bytes.Buffer
	err := runSetupGroups(context.Background(), &config.Config{
		DefaultGroup:        access.GroupViewers,
		AccountDeletePolicy: "cascade",
	}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "GROUP")
	assert.Regexp(t, `Editors\s+book\s+view, create, edit`, out.String())
	assert.NotContains(t, out.String(), "created", "nothing is seeded without a groups file")
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	_, err := openStores(&config.Config{
		DBDriver:     "sqlite",
		DBDSN:        "file::memory:?cache=shared",
		GraphBackend: "graphdb",
	})
	assert.ErrorContains(t, err, "GRAPH_BACKEND")
}

func TestJoinCapabilities(t *testing.T) {
	assert.Equal(t, "view, delete", joinCapabilities([]access.Capability{access.CanView, access.CanDelete}))
	assert.Empty(t, joinCapabilities(nil))
}

func TestHSTSSeconds_OnlyWithTLS(t *testing.T) {
	assert.Zero(t, hstsSeconds(&config.Config{HSTSSeconds: 31536000}))
	assert.Zero(t, hstsSeconds(&config.Config{HSTSSeconds: 31536000, TLSCertFile: "cert.pem"}))
	assert.Equal(t, 600, hstsSeconds(&config.Config{
		HSTSSeconds: 600,
		TLSCertFile: "cert.pem",
		TLSKeyFile:  "key.pem",
	}))
}

func TestNewPublisher_DirectModeRecordsEvents(t *testing.T) {
	mock := store.NewMock()
	reg := prometheus.NewRegistry()

	pub, err := newPublisher(&config.Config{}, mock.Stores(), metrics.NewCollector(reg))
	require.NoError(t, err)
	defer pub.Close()

	ev := models.Event{ID: "e1", Type: models.EventFollow, ActorID: "a", RecipientID: "b"}
	require.NoError(t, pub.Publish(context.Background(), ev))

	n, err := testutil.GatherAndCount(reg, "socialapi_events_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notes, err := mock.ListNotifications(context.Background(), "b", 10)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}
