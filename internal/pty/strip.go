// Copyright 2026 Robert Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package pty

// stripTerminalQueries removes CSI terminal-query sequences (Device
// Attributes, Device Status Report / Cursor Position Report, Request
// Terminal Parameters) from data, leaving every other byte — including
// non-query CSI sequences — untouched. Without this, a late subscriber
// replaying the session buffer could see query sequences a previous
// subscriber's own terminal had injected in response to an earlier
// query, which would never make sense replayed out of their original
// context.
func stripTerminalQueries(data []byte) []byte {
	result := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		if i+1 < len(data) && data[i] == 0x1b && data[i+1] == '[' {
			seqStart := i
			j := i + 2
			for j < len(data) && data[j] >= 0x30 && data[j] <= 0x3f {
				j++
			}
			for j < len(data) && data[j] >= 0x20 && data[j] <= 0x2f {
				j++
			}
			if j < len(data) && data[j] >= 0x40 && data[j] <= 0x7e {
				finalByte := data[j]
				params := string(data[i+2 : j])

				isQuery := false
				switch finalByte {
				case 'c':
					isQuery = true
				case 'n':
					isQuery = params == "5" || params == "6" || params == "?6"
				case 'x':
					isQuery = params == "" || params == "0" || params == "1"
				}

				if isQuery {
					i = j + 1
					continue
				}
			}
			result = append(result, data[seqStart])
			i = seqStart + 1
			continue
		}
		result = append(result, data[i])
		i++
	}
	return result
}
