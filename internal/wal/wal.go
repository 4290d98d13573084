package wal

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
)

const entrySeparator = '\n'

type WALEntry struct {
	Kind uint64
	Key  string
	Data []byte
}

type WAL struct {
	file     *os.File
	fileName string
}

func NewWAL(fileName string) (*WAL, error) {
	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0660)
	if err != nil {
		return nil, err
	}
	return &WAL{
		file,
		fileName,
	}, nil
}

// Loads a WAL file, oldest entries are first in the array. A missing file
// is an empty log.
func LoadWAL(fileName string) ([]WALEntry, error) {
	file, err := os.Open(fileName)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	defer file.Close()

	entries := make([]WALEntry, 0)
	r := bufio.NewReader(file)
	for {
		data, ioErr := r.ReadBytes(entrySeparator)
		if ioErr != nil && ioErr != io.EOF {
			return nil, ioErr
		}

		// A torn last line is dropped, everything before it was synced
		if ioErr == io.EOF && len(data) > 0 {
			break
		}

		if len(data) > 0 {
			entry := WALEntry{}
			err = json.Unmarshal(data, &entry)
			if err != nil {
				return nil, err
			}

			entries = append(entries, entry)
		}

		if ioErr == io.EOF {
			break
		}
	}

	return entries, nil
}

func encodeEntry(kind uint64, key string, data []byte) ([]byte, error) {
	bs, err := json.Marshal(WALEntry{
		Kind: kind,
		Key:  key,
		Data: data,
	})
	if err != nil {
		return nil, err
	}
	return append(bs, entrySeparator), nil
}

// Write appends an entry and syncs it to disk before returning.
func (w *WAL) Write(kind uint64, key string, data []byte) error {
	bs, err := encodeEntry(kind, key, data)
	if err != nil {
		return err
	}

	_, err = w.file.Write(bs)
	if err != nil {
		return err
	}

	return w.file.Sync()
}

// Rewrite atomically replaces the log with entries, which is used to
// compact a log that has accumulated superseded writes.
func (w *WAL) Rewrite(entries []WALEntry) error {
	tmpName := w.fileName + ".tmp"
	tmp, err := os.Create(tmpName)
	if err != nil {
		return err
	}

	writer := bufio.NewWriter(tmp)
	for _, e := range entries {
		bs, err := encodeEntry(e.Kind, e.Key, e.Data)
		if err != nil {
			tmp.Close()
			return err
		}
		if _, err := writer.Write(bs); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := w.file.Close(); err != nil {
		return err
	}
	// The log is reopened even if the rename failed, it then keeps the old entries
	renameErr := os.Rename(tmpName, w.fileName)

	file, err := os.OpenFile(w.fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0660)
	if err != nil {
		return errors.Join(renameErr, err)
	}
	w.file = file
	return renameErr
}

func (w *WAL) Close() error {
	return w.file.Close()
}

func (w *WAL) Delete() error {
	w.Close()
	return os.Remove(w.fileName)
}
