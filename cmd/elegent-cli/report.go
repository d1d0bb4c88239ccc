package main

import (
	"github.com/ethereum/go-ethereum/common"

	"elegentdefi/platform"
)

// txReport is printed after every mined transaction.
type txReport struct {
	Method      string              `json:"method"`
	Hash        common.Hash         `json:"hash"`
	Block       uint64              `json:"block,omitempty"`
	GasUsed     uint64              `json:"gasUsed,omitempty"`
	Invalidates []platform.CacheKey `json:"invalidates"`
	Detail      any                 `json:"detail,omitempty"`
}

func reportOf(result platform.Result, detail any) txReport {
	out := txReport{
		Method:      result.Tx.Method,
		Hash:        result.Tx.Hash,
		Invalidates: result.Invalidates,
		Detail:      detail,
	}
	if receipt := result.Receipt; receipt != nil {
		out.GasUsed = receipt.GasUsed
		if receipt.BlockNumber != nil && receipt.BlockNumber.IsUint64() {
			out.Block = receipt.BlockNumber.Uint64()
		}
	}
	return out
}
