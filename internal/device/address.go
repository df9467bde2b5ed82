// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

var hexChars = regexp.MustCompile(`^[0-9a-f]+$`)

// normalizeHex lowercases s and rejects anything that is not entirely
// lowercase-hex after folding, matching utils/address.py's
// is_valid_public_key/normalize_public_key pair.
func normalizeHex(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("device: empty public key/prefix")
	}
	lower := strings.ToLower(s)
	if !hexChars.MatchString(lower) {
		return "", fmt.Errorf("device: %q is not hexadecimal", s)
	}
	return lower, nil
}

// resolveDestination resolves a full key or prefix as a pure function of
// (contacts, destination): same inputs, same answer, including which of
// several prefix matches wins.
func resolveDestination(contacts []meshmodel.Contact, destination string) (string, error) {
	norm, err := normalizeHex(destination)
	if err != nil {
		return "", err
	}

	if len(norm) == 64 {
		return norm, nil
	}

	if len(norm) < 2 {
		return "", fmt.Errorf("device: prefix %q shorter than 2 hex characters", destination)
	}

	var matches []string
	for _, c := range contacts {
		if strings.HasPrefix(strings.ToLower(c.PublicKey), norm) {
			matches = append(matches, strings.ToLower(c.PublicKey))
		}
	}

	switch len(matches) {
	case 0:
		return "", &meshmodel.DestinationNotFoundError{Prefix: destination}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		log.Warnf("device: prefix %q matched %d contacts, using %s", destination, len(matches), matches[0])
		return matches[0], nil
	}
}
