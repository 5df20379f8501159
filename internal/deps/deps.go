package deps

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Dependency represents a required external dependency
type Dependency struct {
	Name        string // Command name (e.g., "pw-record")
	Description string // Human-readable description
	Required    bool   // If true, capture cannot run without it
}

// CheckResult contains the result of checking a dependency
type CheckResult struct {
	Dependency Dependency
	Available  bool
	Path       string // Path to the executable if found
	Error      error  // Error if check failed
}

// LinuxDeps lists dependencies for the PipeWire capture backend
var LinuxDeps = []Dependency{
	{
		Name:        "pw-record",
		Description: "PipeWire audio capture",
		Required:    true,
	},
	{
		Name:        "pactl",
		Description: "Audio device enumeration",
		Required:    false,
	},
}

// FFmpegDeps lists dependencies for the ffmpeg capture backend
// (macOS avfoundation and Windows dshow)
var FFmpegDeps = []Dependency{
	{
		Name:        "ffmpeg",
		Description: "Audio capture and device enumeration",
		Required:    true,
	},
}

// OptionalDeps lists optional dependencies that enhance functionality
var OptionalDeps = []Dependency{
	{
		Name:        "notify-send",
		Description: "Desktop notifications",
		Required:    false,
	},
	{
		Name:        "paplay",
		Description: "Audio playback for start/stop cues",
		Required:    false,
	},
	{
		Name:        "speaker-test",
		Description: "Alternative audio playback for cues",
		Required:    false,
	},
}

// GetRequiredDeps returns the capture dependencies for the current platform
func GetRequiredDeps() []Dependency {
	if runtime.GOOS == "linux" {
		return LinuxDeps
	}
	return FFmpegDeps
}

// CaptureBackendName returns a human-readable name for the capture backend
func CaptureBackendName() string {
	switch runtime.GOOS {
	case "linux":
		return "pw-record (PipeWire)"
	case "darwin":
		return "ffmpeg (avfoundation)"
	case "windows":
		return "ffmpeg (dshow)"
	default:
		return "unknown"
	}
}

// Check verifies if a single dependency is available
func Check(dep Dependency) CheckResult {
	result := CheckResult{Dependency: dep}

	path, err := exec.LookPath(dep.Name)
	if err != nil {
		result.Available = false
		result.Error = err
	} else {
		result.Available = true
		result.Path = path
	}

	return result
}

// CheckAll verifies all capture and optional dependencies
func CheckAll() (required []CheckResult, optional []CheckResult) {
	for _, dep := range GetRequiredDeps() {
		required = append(required, Check(dep))
	}
	for _, dep := range OptionalDeps {
		optional = append(optional, Check(dep))
	}
	return required, optional
}

// MissingRequired returns a list of missing required dependencies
func MissingRequired() []CheckResult {
	var missing []CheckResult
	for _, dep := range GetRequiredDeps() {
		if dep.Required {
			if result := Check(dep); !result.Available {
				missing = append(missing, result)
			}
		}
	}
	return missing
}

// HasAllRequired returns true if all required dependencies are available
func HasAllRequired() bool {
	return len(MissingRequired()) == 0
}

// FormatMissing returns a formatted string of missing dependencies
func FormatMissing(results []CheckResult) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Missing dependencies:\n\n")

	for _, r := range results {
		status := "MISSING"
		if r.Dependency.Required {
			status = "REQUIRED"
		}
		sb.WriteString(fmt.Sprintf("  • %s (%s)\n", r.Dependency.Name, status))
		sb.WriteString(fmt.Sprintf("    %s\n\n", r.Dependency.Description))
	}

	return sb.String()
}
