package metadata

// FileReader reads a path's content as of a ref, returning (nil, false,
// nil) when the path does not exist at that ref. Satisfied by
// internal/vcs.Repository; declared here (rather than importing vcs
// directly) so metadata has no dependency on the VCS Integration
// component, matching spec §4.4's "asks the VCS" framing without
// creating a package cycle (driver wires the two together).
type FileReader interface {
	FileAtCommit(path, ref string) ([]byte, bool, error)
}

// FromCommit loads and parses the Metadata document at path as of ref.
// Returns an empty Document, not an error, when the path doesn't exist at
// ref yet (the first-commit case, spec §4.4).
func FromCommit(reader FileReader, path, ref string) (Document, error) {
	data, ok, err := reader.FileAtCommit(path, ref)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Document{}, nil
	}
	return Parse(data)
}
