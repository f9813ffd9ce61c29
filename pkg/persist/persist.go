// Package persist stores mount state that must survive a restart.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"nightwatch-mount/pkg/errors"
	"nightwatch-mount/pkg/tracking"
)

// ParkState records where the mount was parked.
type ParkState struct {
	Parked     bool      `yaml:"parked"`
	PierSide   string    `yaml:"pier_side"`
	Axis1Steps int64     `yaml:"axis1_steps"`
	Axis2Steps int64     `yaml:"axis2_steps"`
	SavedAt    time.Time `yaml:"saved_at"`
}

// LoadParkState reads the park state file. A missing file is not an
// error; it returns (nil, nil).
func LoadParkState(path string) (*ParkState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPersist, "read park state")
	}

	var st ParkState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrap(err, errors.ErrPersist, "parse park state")
	}
	return &st, nil
}

// SaveParkState writes the park state atomically.
func SaveParkState(path string, st *ParkState) error {
	st.SavedAt = time.Now().UTC()
	data, err := yaml.Marshal(st)
	if err != nil {
		return errors.Wrap(err, errors.ErrPersist, "encode park state")
	}
	return writeAtomic(path, data)
}

// ClearParkState marks the stored state unparked without losing the
// last position.
func ClearParkState(path string) error {
	st, err := LoadParkState(path)
	if err != nil || st == nil {
		return err
	}
	st.Parked = false
	return SaveParkState(path, st)
}

type pecFile struct {
	WormPeriodSteps int64     `yaml:"worm_period_steps"`
	Entries         []float64 `yaml:"entries"`
}

// LoadPECTable reads a periodic error correction table. expectEntries
// and wormSteps come from the config; a worm period in the file takes
// precedence, but an entry-count mismatch is rejected.
func LoadPECTable(path string, expectEntries int, wormSteps int64) (*tracking.PECTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPersist, "read pec table")
	}

	var f pecFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrPersist, "parse pec table")
	}

	if expectEntries > 0 && len(f.Entries) != expectEntries {
		return nil, errors.Newf(errors.ErrConfigValidation,
			"pec table has %d entries, config expects %d", len(f.Entries), expectEntries)
	}
	if f.WormPeriodSteps > 0 {
		wormSteps = f.WormPeriodSteps
	}
	return tracking.NewPECTable(f.Entries, wormSteps)
}

// writeAtomic writes data via a temp file and rename so a crash cannot
// leave a half-written file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, errors.ErrPersist, "create temp file")
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		return errors.Wrap(fmt.Errorf("write %v close %v", werr, cerr),
			errors.ErrPersist, "write temp file")
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrPersist, "rename into place")
	}
	return nil
}
