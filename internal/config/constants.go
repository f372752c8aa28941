package config

// SourceFileExt is the extension of YAML AST documents accepted by the CLI.
const SourceFileExt = ".wist.yaml"

// SourceFileExtensions are all recognized document extensions
var SourceFileExtensions = []string{".wist.yaml", ".wist.yml"}

// ConfigFileNames are searched, in order, by FindConfig.
var ConfigFileNames = []string{"wist.yaml", "wist.yml"}

// Handle stack geometry. These are fixed at compile time.
const (
	HandlesPerFrame = 32
	MaxHandleFrames = 256
)

// Default runtime limits, used when no wist.yaml overrides them.
const (
	DefaultArgStackSize    = 64 * 1024
	DefaultReturnStackSize = 64 * 1024
	DefaultGCThreshold     = 1 << 16
	DefaultMaxSteps        = 0 // unlimited
)

// Encoding limits imposed by the instruction set.
const (
	MaxAccessIndex = 0xff
	MaxBodyLength  = 0xffff
	MaxBlockFields = 0xffff
	MaxGlobals     = 0xffff
	MaxObjectSlots = 1<<22 - 1
)

// TrimSourceExt removes a recognized document extension from path, if any.
func TrimSourceExt(path string) string {
	for _, ext := range SourceFileExtensions {
		if len(path) > len(ext) && path[len(path)-len(ext):] == ext {
			return path[:len(path)-len(ext)]
		}
	}
	return path
}
