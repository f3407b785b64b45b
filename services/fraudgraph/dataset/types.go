// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset defines the input schema for fraud graph construction and
// provides CSV loading plus synthetic data generation.
//
// A Dataset is four record tables: users, devices, user-device relations,
// and transactions. The graph package consumes a Dataset to build a
// snapshot; schema-level validation lives here, referential integrity
// checks live in the graph builder.
package dataset

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRecord is returned when a record fails schema validation.
// The wrapping error names the table, row, and offending field.
var ErrInvalidRecord = errors.New("invalid dataset record")

// UserRecord is one row of the users table.
type UserRecord struct {
	UserID         string `json:"user_id" validate:"required"`
	AccountAgeDays int    `json:"account_age_days" validate:"gte=0"`
	IsFraudster    bool   `json:"is_fraudster"`
}

// DeviceRecord is one row of the devices table.
type DeviceRecord struct {
	DeviceID string `json:"device_id" validate:"required"`
	Kind     string `json:"kind"`
}

// UsesDeviceRecord is one row of the user-device relation table.
type UsesDeviceRecord struct {
	UserID   string `json:"user_id" validate:"required"`
	DeviceID string `json:"device_id" validate:"required"`
}

// TransactionRecord is one row of the transactions table.
type TransactionRecord struct {
	TransactionID string    `json:"transaction_id" validate:"required"`
	SenderID      string    `json:"sender_id" validate:"required"`
	ReceiverID    string    `json:"receiver_id" validate:"required"`
	Amount        float64   `json:"amount" validate:"gt=0"`
	Timestamp     time.Time `json:"timestamp"`
	IsFraudulent  bool      `json:"is_fraudulent"`
}

// Dataset is a fully materialized input batch.
type Dataset struct {
	Users        []UserRecord        `json:"users"`
	Devices      []DeviceRecord      `json:"devices"`
	UserDevices  []UsesDeviceRecord  `json:"user_devices"`
	Transactions []TransactionRecord `json:"transactions"`
}

// validate is shared across Validate calls; the validator caches struct
// metadata internally and is safe for concurrent use.
var validate = validator.New()

// Validate checks every record against its schema tags.
//
// Description:
//
//	Runs struct-tag validation over all four tables. The first failure is
//	returned with the table name and row index so the caller can surface a
//	field-level message. Referential integrity (dangling user/device
//	references) is NOT checked here; that is the graph builder's job.
//
// Outputs:
//
//	error - Non-nil if any record is malformed. Wraps ErrInvalidRecord.
func (d *Dataset) Validate() error {
	for i := range d.Users {
		if err := validate.Struct(&d.Users[i]); err != nil {
			return fmt.Errorf("%w: users[%d] (%s): %v", ErrInvalidRecord, i, d.Users[i].UserID, err)
		}
	}
	for i := range d.Devices {
		if err := validate.Struct(&d.Devices[i]); err != nil {
			return fmt.Errorf("%w: devices[%d] (%s): %v", ErrInvalidRecord, i, d.Devices[i].DeviceID, err)
		}
	}
	for i := range d.UserDevices {
		if err := validate.Struct(&d.UserDevices[i]); err != nil {
			return fmt.Errorf("%w: user_devices[%d]: %v", ErrInvalidRecord, i, err)
		}
	}
	for i := range d.Transactions {
		if err := validate.Struct(&d.Transactions[i]); err != nil {
			return fmt.Errorf("%w: transactions[%d] (%s): %v", ErrInvalidRecord, i, d.Transactions[i].TransactionID, err)
		}
	}
	return nil
}

// Counts returns the row count of each table, for logging.
func (d *Dataset) Counts() (users, devices, userDevices, transactions int) {
	return len(d.Users), len(d.Devices), len(d.UserDevices), len(d.Transactions)
}
