package network

import (
	"net"
	"os"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

// NodeAddressBook field numbers.
const (
	bookNodeAddress = 1

	nodeIPAddress       = 1
	nodePort            = 2
	nodeMemo            = 3
	nodeRSAPubKey       = 4
	nodeID              = 5
	nodeAccountID       = 6
	nodeCertHash        = 7
	nodeServiceEndpoint = 8
	nodeDescription     = 9
	nodeStake           = 10

	endpointIPv4   = 1
	endpointPort   = 2
	endpointDomain = 3
)

// AddressBook is the decoded NodeAddressBook published by the network.
type AddressBook struct {
	Nodes []NodeAddress `json:"nodes"`
}

// NodeAddress is one entry of an AddressBook.
type NodeAddress struct {
	NodeID      int64            `json:"nodeId"`
	AccountID   ledger.AccountID `json:"-"`
	Account     string           `json:"accountId"`
	Endpoints   []Endpoint       `json:"endpoints"`
	CertHash    []byte           `json:"-"`
	CertHashHex string           `json:"certHash,omitempty"`
	Description string           `json:"description,omitempty"`
	RSAPubKey   string           `json:"rsaPubKey,omitempty"`
	Stake       int64            `json:"stake,omitempty"`

	// legacy single-address fields
	LegacyIP   string `json:"-"`
	LegacyPort int32  `json:"-"`
	Memo       string `json:"memo,omitempty"`
}

// Endpoint is a ServiceEndpoint: an IPv4 address or a domain name, and a port.
type Endpoint struct {
	IPv4   []byte `json:"-"`
	Domain string `json:"domain,omitempty"`
	Port   int32  `json:"port"`
	Host   string `json:"host"`
}

// Address returns host:port, or "" if the endpoint has no host.
func (e Endpoint) Address() string {
	host := e.Domain
	if len(e.IPv4) == net.IPv4len {
		host = net.IP(e.IPv4).String()
	}
	if host == "" {
		return ""
	}
	return net.JoinHostPort(host, strconv.Itoa(int(e.Port)))
}

// Addresses returns the node's dialable addresses, falling back to the
// legacy ipAddress/portno pair when no service endpoint is present.
func (a NodeAddress) Addresses() []string {
	var out []string
	for _, e := range a.Endpoints {
		if addr := e.Address(); addr != "" {
			out = appendUnique(out, addr)
		}
	}
	if len(out) == 0 && a.LegacyIP != "" && a.LegacyPort != 0 {
		out = append(out, net.JoinHostPort(a.LegacyIP, strconv.Itoa(int(a.LegacyPort))))
	}
	return out
}

// Node returns the node's account. Older books carry the account only in
// the memo; the result is zero when neither is set.
func (a NodeAddress) Node() ledger.AccountID {
	if !a.AccountID.IsZero() || a.Memo == "" {
		return a.AccountID
	}
	id, err := ledger.ParseAccountID(a.Memo)
	if err != nil {
		return ledger.AccountID{}
	}
	return id
}

// ParseAddressBook decodes a serialized NodeAddressBook.
func ParseAddressBook(b []byte) (*AddressBook, error) {
	fields, err := ledger.DecodeFields(b)
	if err != nil {
		return nil, errors.Wrap(err, "decode address book")
	}
	book := &AddressBook{}
	for _, f := range fields {
		if f.Num != bookNodeAddress || f.Type != protowire.BytesType {
			continue
		}
		entry, err := parseNodeAddress(f.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "decode node address")
		}
		book.Nodes = append(book.Nodes, entry)
	}
	return book, nil
}

func parseNodeAddress(b []byte) (NodeAddress, error) {
	fields, err := ledger.DecodeFields(b)
	if err != nil {
		return NodeAddress{}, err
	}
	var n NodeAddress
	for _, f := range fields {
		switch f.Num {
		case nodeIPAddress:
			n.LegacyIP = string(f.Bytes)
		case nodePort:
			n.LegacyPort = int32(f.Varint)
		case nodeMemo:
			n.Memo = string(f.Bytes)
		case nodeRSAPubKey:
			n.RSAPubKey = string(f.Bytes)
		case nodeID:
			n.NodeID = int64(f.Varint)
		case nodeAccountID:
			if n.AccountID, err = ledger.UnmarshalAccountID(f.Bytes); err != nil {
				return NodeAddress{}, err
			}
		case nodeCertHash:
			n.CertHash = append([]byte(nil), f.Bytes...)
		case nodeServiceEndpoint:
			e, err := parseEndpoint(f.Bytes)
			if err != nil {
				return NodeAddress{}, err
			}
			n.Endpoints = append(n.Endpoints, e)
		case nodeDescription:
			n.Description = string(f.Bytes)
		case nodeStake:
			n.Stake = int64(f.Varint)
		}
	}
	n.AccountID = n.Node()
	n.Account = n.AccountID.String()
	n.CertHashHex = string(n.CertHash)
	return n, nil
}

func parseEndpoint(b []byte) (Endpoint, error) {
	fields, err := ledger.DecodeFields(b)
	if err != nil {
		return Endpoint{}, err
	}
	var e Endpoint
	for _, f := range fields {
		switch f.Num {
		case endpointIPv4:
			e.IPv4 = append([]byte(nil), f.Bytes...)
		case endpointPort:
			e.Port = int32(f.Varint)
		case endpointDomain:
			e.Domain = string(f.Bytes)
		}
	}
	if len(e.IPv4) == net.IPv4len {
		e.Host = net.IP(e.IPv4).String()
	} else {
		e.Host = e.Domain
	}
	return e, nil
}

// MarshalAddressBook encodes book in the NodeAddressBook format.
func MarshalAddressBook(book *AddressBook) []byte {
	var out []byte
	for _, n := range book.Nodes {
		var b []byte
		b = ledger.AppendString(b, nodeIPAddress, n.LegacyIP)
		b = ledger.AppendVarint(b, nodePort, uint64(n.LegacyPort))
		b = ledger.AppendString(b, nodeMemo, n.Memo)
		b = ledger.AppendString(b, nodeRSAPubKey, n.RSAPubKey)
		b = ledger.AppendVarint(b, nodeID, uint64(n.NodeID))
		b = ledger.AppendMessage(b, nodeAccountID, n.AccountID.Marshal())
		b = ledger.AppendBytes(b, nodeCertHash, n.CertHash)
		for _, e := range n.Endpoints {
			var eb []byte
			eb = ledger.AppendBytes(eb, endpointIPv4, e.IPv4)
			eb = ledger.AppendVarint(eb, endpointPort, uint64(e.Port))
			eb = ledger.AppendString(eb, endpointDomain, e.Domain)
			b = ledger.AppendMessage(b, nodeServiceEndpoint, eb)
		}
		b = ledger.AppendString(b, nodeDescription, n.Description)
		b = ledger.AppendVarint(b, nodeStake, uint64(n.Stake))
		out = ledger.AppendMessage(out, bookNodeAddress, b)
	}
	return out
}

// LoadAddressBookFile reads and decodes an address book file.
func LoadAddressBookFile(path string) (*AddressBook, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read address book")
	}
	return ParseAddressBook(b)
}
