//go:build !windows

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "plain words stay bare",
			args: []string{"shell", "getprop", "ro.product.model"},
			want: "shell getprop ro.product.model",
		},
		{
			name: "pipe stays inside its argument",
			args: []string{"shell", "ls | grep x"},
			want: "shell 'ls | grep x'",
		},
		{
			name: "path with spaces",
			args: []string{"install", "/tmp/my app.apk"},
			want: "install '/tmp/my app.apk'",
		},
		{
			name: "empty argument survives",
			args: []string{"shell", "echo", ""},
			want: "shell echo ''",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandLine(tt.args))
		})
	}
}
