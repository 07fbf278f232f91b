package buildenv

import (
	"fmt"

	git "github.com/go-git/go-git/v5"
)

// Head returns the commit hash the working copy is checked out at. Used
// to enrich build announcements after acquisition.
func (e *Environment) Head() (string, error) {
	repo, err := git.PlainOpen(e.dir)
	if err != nil {
		return "", fmt.Errorf("failed to open repository at %s: %w", e.dir, err)
	}
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD at %s: %w", e.dir, err)
	}
	return ref.Hash().String(), nil
}
