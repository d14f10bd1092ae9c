package build

import "github.com/smce-go/runner/internal/config"

// libraryLists holds the four semicolon-delimited argument lists passed to
// the external configure tool, per spec.md §6.3.
type libraryLists struct {
	preprocRemote  string
	complinkRemote string
	complinkLocal  string
	complinkPatch  string
}

// assembleLibraryLists builds the four lists from a SketchConfig's
// preproc and complink library sets. Remote entries go to the matching
// remote list; Local entries with an empty PatchFor go to complinkLocal;
// Local entries with a non-empty PatchFor go to complinkPatch and also
// register their target name in complinkRemote (trailing space, no
// version marker, per spec.md §6.3/§9). Freestanding entries contribute
// nothing. Any trailing ';' is trimmed from each list.
func assembleLibraryLists(cfg config.SketchConfig) libraryLists {
	var preprocRemote, complinkRemote, complinkLocal, complinkPatch []string

	for _, lib := range cfg.PreprocLibs {
		switch lib.Kind {
		case config.LibraryRemote:
			preprocRemote = append(preprocRemote, remoteEntry(lib))
		case config.LibraryLocal, config.LibraryFreestanding:
			// Only remote entries are meaningful in the preproc list.
		}
	}

	for _, lib := range cfg.ComplinkLibs {
		switch lib.Kind {
		case config.LibraryRemote:
			complinkRemote = append(complinkRemote, remoteEntry(lib))
		case config.LibraryLocal:
			if lib.PatchFor == "" {
				complinkLocal = append(complinkLocal, lib.RootDir)
			} else {
				complinkPatch = append(complinkPatch, lib.RootDir+"|"+lib.PatchFor)
				complinkRemote = append(complinkRemote, lib.PatchFor+" ")
			}
		case config.LibraryFreestanding:
			// contributes nothing
		}
	}

	return libraryLists{
		preprocRemote:  joinSemicolon(preprocRemote),
		complinkRemote: joinSemicolon(complinkRemote),
		complinkLocal:  joinSemicolon(complinkLocal),
		complinkPatch:  joinSemicolon(complinkPatch),
	}
}

func remoteEntry(lib config.Library) string {
	if lib.Version == "" {
		return lib.Name
	}
	return lib.Name + "@" + lib.Version
}

func joinSemicolon(entries []string) string {
	out := ""
	for i, e := range entries {
		if i > 0 {
			out += ";"
		}
		out += e
	}
	return out
}
