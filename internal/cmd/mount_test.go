package cmd

import (
	"testing"
)

func TestPathsOverlap(t *testing.T) {
	tests := []struct {
		name     string
		path1    string
		path2    string
		expected bool
	}{
		{
			name:     "identical paths",
			path1:    "/tmp/project",
			path2:    "/tmp/project",
			expected: true,
		},
		{
			name:     "path1 contains path2",
			path1:    "/tmp/project/node_modules",
			path2:    "/tmp/project",
			expected: true,
		},
		{
			name:     "path2 contains path1",
			path1:    "/tmp/project",
			path2:    "/tmp/project/mnt",
			expected: true,
		},
		{
			name:     "completely separate paths",
			path1:    "/tmp/project",
			path2:    "/mnt/view",
			expected: false,
		},
		{
			name:     "sibling directories",
			path1:    "/tmp/project",
			path2:    "/tmp/project-view",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pathsOverlap(tt.path1, tt.path2); got != tt.expected {
				t.Errorf("pathsOverlap(%q, %q) = %v, want %v", tt.path1, tt.path2, got, tt.expected)
			}
		})
	}
}
