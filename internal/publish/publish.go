package publish

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dispatch-cli/internal/format"
	"dispatch-cli/internal/model"
)

type WriteOptions struct {
	IncludeCompleted bool
	Overwrite        bool
}

type WriteResult struct {
	Written []string `json:"written" yaml:"written"`
}

// WriteBoard writes a snapshot as linked markdown pages under
// <toDir>/boards/<date>-<view>/.
func WriteBoard(snap model.BoardSnapshot, toDir string, opt WriteOptions) (WriteResult, error) {
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	if strings.TrimSpace(snap.Date) == "" {
		return WriteResult{}, errors.New("missing board date")
	}
	toDir = filepath.Clean(toDir)

	boardDir := filepath.Join(toDir, "boards", snap.Date+"-"+string(snap.View))
	crewsDir := filepath.Join(boardDir, "crews")
	itemsDir := filepath.Join(boardDir, "work-orders")
	for _, d := range []string{crewsDir, itemsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return WriteResult{}, err
		}
	}

	ropt := RenderOptions{IncludeCompleted: opt.IncludeCompleted}
	indexPath := filepath.Join(boardDir, "index.md")
	if err := writeFile(indexPath, []byte(RenderIndexMarkdown(snap, ropt)), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}
	written := []string{indexPath}

	for _, c := range snap.Crews {
		name, err := fileName(c.ID)
		if err != nil {
			return WriteResult{}, err
		}
		md, err := RenderCrewMarkdown(snap, c.ID)
		if err != nil {
			return WriteResult{}, err
		}
		p := filepath.Join(crewsDir, name)
		if err := writeFile(p, []byte(md), opt.Overwrite); err != nil {
			return WriteResult{}, err
		}
		written = append(written, p)
	}

	for _, st := range model.Statuses {
		if st == model.StatusCompleted && !opt.IncludeCompleted {
			continue
		}
		for _, wo := range snap.WorkOrders.Bucket(st) {
			name, err := fileName(wo.ID)
			if err != nil {
				return WriteResult{}, err
			}
			p := filepath.Join(itemsDir, name)
			if err := writeFile(p, []byte(format.WorkOrderMarkdown(wo)), opt.Overwrite); err != nil {
				return WriteResult{}, err
			}
			written = append(written, p)
		}
	}

	return WriteResult{Written: written}, nil
}

// fileName rejects ids that would escape the board directory.
func fileName(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("unsafe id for a file name: %q", id)
	}
	return id + ".md", nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
