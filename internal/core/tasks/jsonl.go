package tasks

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// WriteJSONL writes one task per line, truncating any existing file.
func WriteJSONL(path string, tasks []Task) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating task file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, task := range tasks {
		if err := enc.Encode(task); err != nil {
			return fmt.Errorf("error writing task %s: %w", task.CustomID, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("error flushing task file %s: %w", path, err)
	}
	return nil
}

func ReadJSONL(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening task file %s: %w", path, err)
	}
	defer f.Close()

	return DecodeJSONL(f)
}

func DecodeJSONL(r io.Reader) ([]Task, error) {
	var out []Task
	dec := json.NewDecoder(r)
	for {
		var task Task
		if err := dec.Decode(&task); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("error decoding task %d: %w", len(out), err)
		}
		out = append(out, task)
	}
}
