package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, name := range []string{"migrate", "create-staff", "delete-account"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("db-dsn"))
}

func TestCommandArgs(t *testing.T) {
	assert.Error(t, deleteAccountCmd.Args(deleteAccountCmd, nil))
	assert.NoError(t, deleteAccountCmd.Args(deleteAccountCmd, []string{"frodo"}))
	assert.Error(t, migrateCmd.Args(migrateCmd, []string{"extra"}))

	for _, flag := range []string{"username", "email", "password"} {
		f := createStaffCmd.Flags().Lookup(flag)
		require.NotNil(t, f)
		assert.Equal(t, []string{"true"}, f.Annotations["cobra_annotation_bash_completion_one_required_flag"])
	}
}
