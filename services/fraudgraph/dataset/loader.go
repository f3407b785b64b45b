// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CSV file names, one per table.
const (
	UsersFile        = "users.csv"
	DevicesFile      = "devices.csv"
	UserDevicesFile  = "user_devices.csv"
	TransactionsFile = "transactions.csv"
)

// timestampLayout is the on-disk transaction timestamp format.
const timestampLayout = time.RFC3339

// Load reads the four CSV tables from dir into a Dataset.
//
// Description:
//
//	Each table is a headered CSV file. Parse failures report the file,
//	row, and column so a bad cell in a large export is findable. The
//	loaded dataset is schema-validated before being returned.
//
// Inputs:
//
//	dir - Directory holding users.csv, devices.csv, user_devices.csv,
//	      and transactions.csv.
//
// Outputs:
//
//	*Dataset - The loaded, validated dataset.
//	error - Non-nil for missing files, malformed rows, or schema
//	        violations (wraps ErrInvalidRecord).
func Load(dir string) (*Dataset, error) {
	ds := &Dataset{}

	err := readTable(filepath.Join(dir, UsersFile), 3, func(row int, rec []string) error {
		age, err := strconv.Atoi(rec[1])
		if err != nil {
			return fmt.Errorf("account_age_days: %w", err)
		}
		fraudster, err := strconv.ParseBool(rec[2])
		if err != nil {
			return fmt.Errorf("is_fraudster: %w", err)
		}
		ds.Users = append(ds.Users, UserRecord{
			UserID:         rec[0],
			AccountAgeDays: age,
			IsFraudster:    fraudster,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readTable(filepath.Join(dir, DevicesFile), 2, func(row int, rec []string) error {
		ds.Devices = append(ds.Devices, DeviceRecord{DeviceID: rec[0], Kind: rec[1]})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readTable(filepath.Join(dir, UserDevicesFile), 2, func(row int, rec []string) error {
		ds.UserDevices = append(ds.UserDevices, UsesDeviceRecord{UserID: rec[0], DeviceID: rec[1]})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readTable(filepath.Join(dir, TransactionsFile), 6, func(row int, rec []string) error {
		amount, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		ts, err := time.Parse(timestampLayout, rec[4])
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		fraudulent, err := strconv.ParseBool(rec[5])
		if err != nil {
			return fmt.Errorf("is_fraudulent: %w", err)
		}
		ds.Transactions = append(ds.Transactions, TransactionRecord{
			TransactionID: rec[0],
			SenderID:      rec[1],
			ReceiverID:    rec[2],
			Amount:        amount,
			Timestamp:     ts,
			IsFraudulent:  fraudulent,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Save writes the dataset's four CSV tables to dir, creating it if needed.
func Save(ds *Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create dataset directory: %w", err)
	}

	users := [][]string{{"user_id", "account_age_days", "is_fraudster"}}
	for _, r := range ds.Users {
		users = append(users, []string{
			r.UserID,
			strconv.Itoa(r.AccountAgeDays),
			strconv.FormatBool(r.IsFraudster),
		})
	}
	if err := writeTable(filepath.Join(dir, UsersFile), users); err != nil {
		return err
	}

	devices := [][]string{{"device_id", "kind"}}
	for _, r := range ds.Devices {
		devices = append(devices, []string{r.DeviceID, r.Kind})
	}
	if err := writeTable(filepath.Join(dir, DevicesFile), devices); err != nil {
		return err
	}

	userDevices := [][]string{{"user_id", "device_id"}}
	for _, r := range ds.UserDevices {
		userDevices = append(userDevices, []string{r.UserID, r.DeviceID})
	}
	if err := writeTable(filepath.Join(dir, UserDevicesFile), userDevices); err != nil {
		return err
	}

	txns := [][]string{{"transaction_id", "sender_id", "receiver_id", "amount", "timestamp", "is_fraudulent"}}
	for _, r := range ds.Transactions {
		txns = append(txns, []string{
			r.TransactionID,
			r.SenderID,
			r.ReceiverID,
			strconv.FormatFloat(r.Amount, 'f', 2, 64),
			r.Timestamp.Format(timestampLayout),
			strconv.FormatBool(r.IsFraudulent),
		})
	}
	return writeTable(filepath.Join(dir, TransactionsFile), txns)
}

// readTable reads a headered CSV file and applies fn to each data row.
func readTable(path string, columns int, fn func(row int, rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = columns

	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: %s is missing its header row", ErrInvalidRecord, filepath.Base(path))
	}

	for i, rec := range records[1:] {
		if err := fn(i, rec); err != nil {
			return fmt.Errorf("%w: %s row %d: %v", ErrInvalidRecord, filepath.Base(path), i+1, err)
		}
	}
	return nil
}

// writeTable writes rows (header included) to a CSV file.
func writeTable(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	w.Flush()
	return w.Error()
}
