// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSVFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// writeMinimalTables writes a valid one-row version of every table except
// the ones the caller overwrites afterwards.
func writeMinimalTables(t *testing.T, dir string) {
	t.Helper()
	writeCSVFile(t, dir, UsersFile, "user_id,account_age_days,is_fraudster\nU1,30,false\nU2,60,true\n")
	writeCSVFile(t, dir, DevicesFile, "device_id,kind\nD1,mobile\n")
	writeCSVFile(t, dir, UserDevicesFile, "user_id,device_id\nU1,D1\n")
	writeCSVFile(t, dir, TransactionsFile,
		"transaction_id,sender_id,receiver_id,amount,timestamp,is_fraudulent\nT1,U1,U2,99.50,2025-06-01T12:00:00Z,false\n")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	original := &Dataset{
		Users: []UserRecord{
			{UserID: "U1", AccountAgeDays: 30},
			{UserID: "U2", AccountAgeDays: 5, IsFraudster: true},
		},
		Devices: []DeviceRecord{
			{DeviceID: "D1", Kind: "mobile"},
			{DeviceID: "D2", Kind: "desktop"},
		},
		UserDevices: []UsesDeviceRecord{
			{UserID: "U1", DeviceID: "D1"},
			{UserID: "U2", DeviceID: "D1"},
			{UserID: "U2", DeviceID: "D2"},
		},
		Transactions: []TransactionRecord{
			{TransactionID: "T1", SenderID: "U1", ReceiverID: "U2", Amount: 123.45, Timestamp: ts, IsFraudulent: true},
			{TransactionID: "T2", SenderID: "U2", ReceiverID: "U1", Amount: 5.00, Timestamp: ts.Add(time.Hour)},
		},
	}

	dir := filepath.Join(t.TempDir(), "ds")
	require.NoError(t, Save(original, dir))

	loaded, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, original.Users, loaded.Users)
	assert.Equal(t, original.Devices, loaded.Devices)
	assert.Equal(t, original.UserDevices, loaded.UserDevices)

	require.Len(t, loaded.Transactions, 2)
	for i, got := range loaded.Transactions {
		want := original.Transactions[i]
		assert.Equal(t, want.TransactionID, got.TransactionID)
		assert.Equal(t, want.SenderID, got.SenderID)
		assert.Equal(t, want.ReceiverID, got.ReceiverID)
		assert.InDelta(t, want.Amount, got.Amount, 1e-9)
		assert.True(t, want.Timestamp.Equal(got.Timestamp))
		assert.Equal(t, want.IsFraudulent, got.IsFraudulent)
	}
}

func TestLoad_ValidDirectory(t *testing.T) {
	dir := t.TempDir()
	writeMinimalTables(t, dir)

	ds, err := Load(dir)
	require.NoError(t, err)

	users, devices, userDevices, txns := ds.Counts()
	assert.Equal(t, 2, users)
	assert.Equal(t, 1, devices)
	assert.Equal(t, 1, userDevices)
	assert.Equal(t, 1, txns)
	assert.True(t, ds.Users[1].IsFraudster)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoad_MalformedAge(t *testing.T) {
	dir := t.TempDir()
	writeMinimalTables(t, dir)
	writeCSVFile(t, dir, UsersFile, "user_id,account_age_days,is_fraudster\nU1,notanumber,false\n")

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Contains(t, err.Error(), "users.csv")
}

func TestLoad_MalformedTimestamp(t *testing.T) {
	dir := t.TempDir()
	writeMinimalTables(t, dir)
	writeCSVFile(t, dir, TransactionsFile,
		"transaction_id,sender_id,receiver_id,amount,timestamp,is_fraudulent\nT1,U1,U2,10.00,June first,false\n")

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Contains(t, err.Error(), "transactions.csv")
}

func TestLoad_MissingHeader(t *testing.T) {
	dir := t.TempDir()
	writeMinimalTables(t, dir)
	writeCSVFile(t, dir, DevicesFile, "")

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestLoad_SchemaViolation(t *testing.T) {
	dir := t.TempDir()
	writeMinimalTables(t, dir)
	writeCSVFile(t, dir, UsersFile, "user_id,account_age_days,is_fraudster\n,30,false\n")

	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestLoad_WrongColumnCount(t *testing.T) {
	dir := t.TempDir()
	writeMinimalTables(t, dir)
	writeCSVFile(t, dir, UserDevicesFile, "user_id,device_id\nU1\n")

	_, err := Load(dir)
	assert.Error(t, err)
}
