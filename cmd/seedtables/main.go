// Command seedtables writes a small demo popularity snapshot so the
// scoring engine has data to work with before the offline pipeline has
// produced a real one.
package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/okian/medley/internal/adapters/popularity"
	"github.com/okian/medley/internal/domain/model"
)

func main() {
	out := flag.String("out", "popularity.json", "output snapshot path")
	flag.Parse()

	// A handful of well-known MusicBrainz artist ids and degrees,
	// enough to exercise every bonus bucket.
	artists := map[string]popularity.ArtistRecord{
		"b7539c32-53e7-4908-bda3-81449c367da6": {Degree: 85, Category: model.CategoryUltraMainstream}, // Lana Del Rey
		"f27ec8db-af05-4f36-916e-3d57f91ecf5e": {Degree: 64, Category: model.CategoryUltraMainstream}, // Michael Jackson
		"164f0d73-1234-4e2c-8743-d77bf2191051": {Degree: 41, Category: model.CategoryMainstream},      // Kanye West
		"381086ea-f511-4aba-bdf9-71c753dc5077": {Degree: 38, Category: model.CategoryMainstream},      // Kendrick Lamar
		"cc197bad-dc9c-440d-a5b5-d52ba2e14234": {Degree: 22, Category: model.CategoryConnu},           // Coldplay
		"5441c29d-3602-4898-b1a1-b77fa23b8e50": {Degree: 17, Category: model.CategoryConnu},           // David Bowie
		"8538e728-ca0b-4321-b7e5-cff6565dd4c0": {Degree: 9, Category: model.CategoryNiche},            // Depeche Mode
		"69ee3720-a7cb-4402-b48d-a02c366f2bcf": {Degree: 3, Category: model.CategoryUnderground},      // The Cure
	}

	pairs := map[string]int{
		popularity.PairKey(
			"164f0d73-1234-4e2c-8743-d77bf2191051",
			"381086ea-f511-4aba-bdf9-71c753dc5077",
		): 2,
		popularity.PairKey(
			"b7539c32-53e7-4908-bda3-81449c367da6",
			"164f0d73-1234-4e2c-8743-d77bf2191051",
		): 1,
		popularity.PairKey(
			"cc197bad-dc9c-440d-a5b5-d52ba2e14234",
			"5441c29d-3602-4898-b1a1-b77fa23b8e50",
		): 5,
	}

	snapshot := popularity.Snapshot{
		Pairs:   pairs,
		Artists: artists,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		os.Stderr.WriteString("failed to marshal snapshot: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		os.Stderr.WriteString("failed to write snapshot: " + err.Error() + "\n")
		os.Exit(1)
	}
	os.Stdout.WriteString("wrote " + *out + "\n")
}
