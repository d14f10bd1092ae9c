package build

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smce-go/runner/internal/config"
)

// S3: complink_libs = [Remote("WiFi","1.2.3"), Local("/x/lib",""),
// Local("/x/patch","Adafruit_GFX"), Freestanding] ->
// complink_remote="WiFi@1.2.3;Adafruit_GFX ", complink_local="/x/lib",
// complink_patch="/x/patch|Adafruit_GFX".
func TestScenarioS3LibraryListAssembly(t *testing.T) {
	cfg := config.SketchConfig{
		ComplinkLibs: []config.Library{
			{Kind: config.LibraryRemote, Name: "WiFi", Version: "1.2.3"},
			{Kind: config.LibraryLocal, RootDir: "/x/lib"},
			{Kind: config.LibraryLocal, RootDir: "/x/patch", PatchFor: "Adafruit_GFX"},
			{Kind: config.LibraryFreestanding, Name: "core"},
		},
	}

	lists := assembleLibraryLists(cfg)
	assert.Equal(t, "WiFi@1.2.3;Adafruit_GFX ", lists.complinkRemote)
	assert.Equal(t, "/x/lib", lists.complinkLocal)
	assert.Equal(t, "/x/patch|Adafruit_GFX", lists.complinkPatch)
	assert.Equal(t, "", lists.preprocRemote)
}

func TestPreprocRemoteOnlyCollectsRemoteEntries(t *testing.T) {
	cfg := config.SketchConfig{
		PreprocLibs: []config.Library{
			{Kind: config.LibraryRemote, Name: "ArduinoJson", Version: "6.21.0"},
			{Kind: config.LibraryRemote, Name: "SPI"},
			{Kind: config.LibraryLocal, RootDir: "/ignored"},
		},
	}

	lists := assembleLibraryLists(cfg)
	assert.Equal(t, "ArduinoJson@6.21.0;SPI", lists.preprocRemote)
}

func TestRemoteEntryOmitsAtSignWhenVersionEmpty(t *testing.T) {
	assert.Equal(t, "SPI", remoteEntry(config.Library{Name: "SPI"}))
	assert.Equal(t, "SPI@1.0", remoteEntry(config.Library{Name: "SPI", Version: "1.0"}))
}
