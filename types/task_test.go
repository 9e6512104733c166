package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatus_Codes(t *testing.T) {
	// 持久化的数值不可变
	assert.Equal(t, 0, int(StatusPending))
	assert.Equal(t, 1, int(StatusEmptySuccess))
	assert.Equal(t, 2, int(StatusSuccess))
	assert.Equal(t, 3, int(StatusUnsatisfied))
	assert.Equal(t, 4, int(StatusExecutionFailed))
	assert.Equal(t, 5, int(StatusSkipped))
	assert.Equal(t, 6, int(StatusIndexingFailed))
}

func TestTaskStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, TaskStatus(42).IsTerminal())
	for _, s := range AllStatuses()[1:] {
		assert.True(t, s.IsTerminal(), s.String())
	}
}

func TestParseTaskStatus(t *testing.T) {
	for _, s := range AllStatuses() {
		parsed, err := ParseTaskStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	parsed, err := ParseTaskStatus(" empty_success ")
	require.NoError(t, err)
	assert.Equal(t, StatusEmptySuccess, parsed)

	_, err = ParseTaskStatus("DONE")
	assert.Error(t, err)
	assert.Equal(t, "STATUS(42)", TaskStatus(42).String())
}

func TestClassifyPlugin(t *testing.T) {
	tests := []struct {
		name string
		want OperatingSystem
	}{
		{"linux.pslist.PsList", OSLinux},
		{"windows.info.Info", OSWindows},
		{"mac.bash.Bash", OSMac},
		{"banners.Banners", OSOther},
		{"timeliner.Timeliner", OSOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPlugin(tt.name))
		})
	}
}

func TestParseOperatingSystem(t *testing.T) {
	os, err := ParseOperatingSystem("Windows")
	require.NoError(t, err)
	assert.Equal(t, OSWindows, os)

	os, err = ParseOperatingSystem("darwin")
	require.NoError(t, err)
	assert.Equal(t, OSMac, os)

	_, err = ParseOperatingSystem("plan9")
	assert.Error(t, err)
}

func TestIndexName(t *testing.T) {
	artifact := Artifact{ID: "a1", Index: "case42dump"}
	plugin := PluginDescriptor{Name: "windows.pslist.PsList"}

	assert.Equal(t, "case42dump_windows.pslist.pslist", IndexName(artifact, plugin))
}

func TestTaskSpec_Key(t *testing.T) {
	spec := TaskSpec{
		Artifact: Artifact{ID: "a1"},
		Plugin:   PluginDescriptor{Name: "banners.Banners"},
	}
	assert.Equal(t, "a1/banners.Banners", spec.Key())
}
