package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "student or staff profiles.csv",
		"entity_id,name,role,email,department,student_id,staff_id,card_id,device_hash,face_id\n"+
			"E1,Ada,student,ada@campus.edu,CS,S1,,C1,D1,F1\n"+
			",Nobody,staff,,,,,C9,,\n"+
			"E2,Bob,staff,,Physics,,T2,,,\n")

	profiles, found, err := LoadProfiles(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, profiles, 2)

	assert.Equal(t, "E1", profiles[0].EntityID)
	assert.Equal(t, "C1", profiles[0].CardID)
	assert.Equal(t, "D1", profiles[0].DeviceHash)
	assert.Equal(t, "F1", profiles[0].FaceID)
	assert.Equal(t, "Ada", profiles[0].Name)
	assert.Equal(t, "CS", profiles[0].Extra["department"])
	assert.Empty(t, profiles[1].CardID)
}

func TestLoadProfiles_NotFound(t *testing.T) {
	profiles, found, err := LoadProfiles(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, profiles)
}

func TestLoadProfiles_NoEntityColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "profiles.csv", "name,card_id\nAda,C1\n")

	_, found, err := LoadProfiles(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, found)
	assert.Contains(t, err.Error(), "no entity_id column")
}
