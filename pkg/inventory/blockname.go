package inventory

import (
	"fmt"
	"strings"
)

// ExternalBlockName is the wire/SQL-facing form of a block name:
// "/primary/processed/tier#guid". It is what adapters receive from remote
// catalogs and what the persistent store writes to the blocks table.
type ExternalBlockName string

// InternalBlockName is the storage key used inside the inventory: just the
// guid portion, scoped implicitly by the owning Block's Dataset. Keeping
// the two as distinct types prevents a block name received from the wire
// from being used, unqualified, as a map key inside a Dataset's block set
// (the dataset prefix would otherwise be redundant and a source of subtle
// bugs if the two were the same type).
type InternalBlockName string

// NewExternalBlockName joins a dataset name and a block guid into the wire
// form.
func NewExternalBlockName(datasetName, guid string) ExternalBlockName {
	return ExternalBlockName(datasetName + "#" + guid)
}

// Split parses the wire form into its dataset name and guid.
func (n ExternalBlockName) Split() (datasetName string, guid string, err error) {
	s := string(n)
	i := strings.LastIndexByte(s, '#')
	if i < 0 {
		return "", "", fmt.Errorf("malformed block name %q: missing '#'", s)
	}
	return s[:i], s[i+1:], nil
}

// Internal strips the dataset prefix, yielding the storage key.
func (n ExternalBlockName) Internal() (InternalBlockName, error) {
	_, guid, err := n.Split()
	if err != nil {
		return "", err
	}
	return InternalBlockName(guid), nil
}

// External rejoins an internal name with the given dataset name.
func (n InternalBlockName) External(datasetName string) ExternalBlockName {
	return NewExternalBlockName(datasetName, string(n))
}
