package cmd

import (
	"testing"

	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitProject(t *testing.T) {
	t.Parallel()

	memFs := afero.NewMemMapFs()

	created, err := initProject(memFs, "project")
	require.NoError(t, err)
	assert.Equal(t, []string{"project/pipeline.yml", "project/.sparkify.yml"}, created)

	def, err := pipeline.LoadDefinition(memFs, "project/pipeline.yml")
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultDefinition(), def)

	gitignore, err := afero.ReadFile(memFs, "project/.gitignore")
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), ".sparkify.yml")

	created, err = initProject(memFs, "project")
	require.NoError(t, err)
	assert.Empty(t, created)
}
