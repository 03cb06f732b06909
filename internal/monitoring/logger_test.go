package monitoring

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogger(t *testing.T) {
	// Save original logger
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// Now set to nil and verify it doesn't call our logger
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()
	Logf("test message: %s", "value")
}

func TestConfigure(t *testing.T) {
	out := Logger.Out
	formatter := Logger.Formatter
	level := Logger.Level
	defer func() {
		Logger.SetOutput(out)
		Logger.SetFormatter(formatter)
		Logger.SetLevel(level)
	}()

	var buf bytes.Buffer
	require.NoError(t, Configure("debug", "json", &buf))
	assert.Equal(t, logrus.DebugLevel, Logger.Level)

	WithRun("run-1").Info("scored")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "run-1", line["run_id"])
	assert.Equal(t, "scored", line["msg"])

	assert.Error(t, Configure("loud", "text", nil))
	assert.Error(t, Configure("info", "xml", nil))
}
