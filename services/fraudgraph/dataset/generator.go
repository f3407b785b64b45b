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
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// Generator defaults.
const (
	// DefaultSeed keeps generated datasets reproducible across runs.
	DefaultSeed = 42

	// DefaultUserCount is the default number of users.
	DefaultUserCount = 200

	// DefaultFraudRate is the fraction of users that are fraudsters.
	DefaultFraudRate = 0.02

	// DefaultRingCount is the number of fraud rings to form.
	DefaultRingCount = 3

	// DefaultTransactionCount is the default number of transactions.
	DefaultTransactionCount = 1000

	// fraudTxnRate is the fraction of transactions involving a fraudster.
	fraudTxnRate = 0.3

	// muleRate is the fraction of fraud transactions sent to a normal
	// user (money mule pattern) rather than inside the ring.
	muleRate = 0.6

	// historyDays is the span of generated transaction timestamps.
	historyDays = 180
)

// GeneratorOptions configures synthetic dataset generation.
type GeneratorOptions struct {
	// Seed drives all randomness. The same seed and counts produce an
	// identical dataset. Default: 42
	Seed int64

	// Users is the number of user records. Must be >= 2. Default: 200
	Users int

	// FraudRate is the fraudster fraction in [0, 1]. Default: 0.02
	FraudRate float64

	// Rings is the number of fraud rings to form. Rings need 3 to 7
	// members each; rings that cannot be filled are skipped. Default: 3
	Rings int

	// Transactions is the number of transaction records. Default: 1000
	Transactions int

	// Start anchors timestamps; transactions land in the historyDays
	// window before it. Zero means time.Now().
	Start time.Time
}

// Validate checks options and applies defaults for zero values.
func (o *GeneratorOptions) Validate() error {
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Users == 0 {
		o.Users = DefaultUserCount
	}
	if o.Users < 2 {
		return fmt.Errorf("users must be >= 2, got %d", o.Users)
	}
	if o.FraudRate == 0 {
		o.FraudRate = DefaultFraudRate
	}
	if o.FraudRate < 0 || o.FraudRate > 1 {
		return fmt.Errorf("fraud_rate must be in [0, 1], got %v", o.FraudRate)
	}
	if o.Rings == 0 {
		o.Rings = DefaultRingCount
	}
	if o.Rings < 0 {
		return fmt.Errorf("rings must be >= 0, got %d", o.Rings)
	}
	if o.Transactions == 0 {
		o.Transactions = DefaultTransactionCount
	}
	if o.Transactions < 0 {
		return fmt.Errorf("transactions must be >= 0, got %d", o.Transactions)
	}
	if o.Start.IsZero() {
		o.Start = time.Now()
	}
	return nil
}

// DefaultGeneratorOptions returns the default generation parameters.
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		Seed:         DefaultSeed,
		Users:        DefaultUserCount,
		FraudRate:    DefaultFraudRate,
		Rings:        DefaultRingCount,
		Transactions: DefaultTransactionCount,
	}
}

// Generate produces a synthetic P2P payment dataset with planted fraud
// structure.
//
// Description:
//
//	Fraudsters get young accounts (1-90 days) versus 1-1000 days for
//	normal users. Fraudsters are grouped into rings of 3-7 members; each
//	ring shares 1-3 mobile devices, which is the structural signal the
//	scoring pipeline keys on. Normal users carry 1-2 personal devices.
//	Transactions mix a money-mule pattern (fraudster paying a normal
//	user) with intra-ring transfers; fraud amounts run 100-5000 versus
//	5-500 for normal traffic.
//
// Inputs:
//
//	opts - Generation parameters. Zero fields use defaults.
//
// Outputs:
//
//	*Dataset - The generated dataset, transactions sorted by timestamp.
//	error - Non-nil for invalid options.
//
// Thread Safety: Safe; each call owns its random source.
func Generate(opts GeneratorOptions) (*Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	ds := &Dataset{}
	fraudCount := int(float64(opts.Users) * opts.FraudRate)

	var fraudsters, normal []string
	for i := 0; i < opts.Users; i++ {
		id := fmt.Sprintf("U%04d", i)
		isFraudster := i < fraudCount
		age := 1 + rng.Intn(1000)
		if isFraudster {
			age = 1 + rng.Intn(90)
			fraudsters = append(fraudsters, id)
		} else {
			normal = append(normal, id)
		}
		ds.Users = append(ds.Users, UserRecord{
			UserID:         id,
			AccountAgeDays: age,
			IsFraudster:    isFraudster,
		})
	}

	rings := formRings(rng, fraudsters, opts.Rings)

	deviceSeq := 0
	nextDevice := func(kind string) string {
		id := fmt.Sprintf("D%04d", deviceSeq)
		deviceSeq++
		ds.Devices = append(ds.Devices, DeviceRecord{DeviceID: id, Kind: kind})
		return id
	}
	kinds := []string{"mobile", "desktop", "tablet"}

	// Normal users: 1-2 personal devices.
	for _, userID := range normal {
		n := 1 + rng.Intn(2)
		for i := 0; i < n; i++ {
			deviceID := nextDevice(kinds[rng.Intn(len(kinds))])
			ds.UserDevices = append(ds.UserDevices, UsesDeviceRecord{UserID: userID, DeviceID: deviceID})
		}
	}

	// Rings: 1-3 devices shared by every member.
	inRing := make(map[string]bool)
	for _, ring := range rings {
		shared := make([]string, 1+rng.Intn(3))
		for i := range shared {
			shared[i] = nextDevice("mobile")
		}
		for _, userID := range ring {
			inRing[userID] = true
			for _, deviceID := range shared {
				ds.UserDevices = append(ds.UserDevices, UsesDeviceRecord{UserID: userID, DeviceID: deviceID})
			}
		}
	}

	// Fraudsters outside any ring: one personal device.
	for _, userID := range fraudsters {
		if inRing[userID] {
			continue
		}
		deviceID := nextDevice("mobile")
		ds.UserDevices = append(ds.UserDevices, UsesDeviceRecord{UserID: userID, DeviceID: deviceID})
	}

	ringOf := make(map[string][]string)
	for _, ring := range rings {
		for _, userID := range ring {
			ringOf[userID] = ring
		}
	}

	for i := 0; i < opts.Transactions; i++ {
		var sender, receiver string
		var amount float64
		var fraudulent bool

		if len(fraudsters) > 0 && len(normal) > 0 && rng.Float64() < fraudTxnRate {
			sender = fraudsters[rng.Intn(len(fraudsters))]
			if rng.Float64() < muleRate {
				// Money mule: cash out through a normal account.
				receiver = normal[rng.Intn(len(normal))]
			} else if ring := ringOf[sender]; len(ring) > 1 {
				receiver = ring[rng.Intn(len(ring))]
				for receiver == sender {
					receiver = ring[rng.Intn(len(ring))]
				}
			} else {
				receiver = normal[rng.Intn(len(normal))]
			}
			amount = 100 + rng.Float64()*4900
			fraudulent = true
		} else {
			// Background traffic. Fewer than two normal users leaves no
			// pair to draw; the full population serves as the pool then.
			pool := normal
			if len(pool) < 2 {
				pool = make([]string, 0, opts.Users)
				pool = append(pool, normal...)
				pool = append(pool, fraudsters...)
			}
			sender = pool[rng.Intn(len(pool))]
			receiver = pool[rng.Intn(len(pool))]
			for receiver == sender {
				receiver = pool[rng.Intn(len(pool))]
			}
			amount = 5 + rng.Float64()*495
			fraudulent = false
		}

		offset := time.Duration(rng.Intn(historyDays*24*60)) * time.Minute
		ds.Transactions = append(ds.Transactions, TransactionRecord{
			TransactionID: fmt.Sprintf("T%05d", i),
			SenderID:      sender,
			ReceiverID:    receiver,
			Amount:        float64(int(amount*100)) / 100,
			Timestamp:     opts.Start.Add(-offset),
			IsFraudulent:  fraudulent,
		})
	}

	sort.SliceStable(ds.Transactions, func(i, j int) bool {
		return ds.Transactions[i].Timestamp.Before(ds.Transactions[j].Timestamp)
	})
	return ds, nil
}

// formRings partitions shuffled fraudsters into rings of 3-7 members.
// Rings that cannot be fully staffed are not formed.
func formRings(rng *rand.Rand, fraudsters []string, count int) [][]string {
	pool := make([]string, len(fraudsters))
	copy(pool, fraudsters)
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	var rings [][]string
	for i := 0; i < count; i++ {
		size := 3 + rng.Intn(5)
		if len(pool) < size {
			break
		}
		rings = append(rings, pool[:size])
		pool = pool[size:]
	}
	return rings
}
