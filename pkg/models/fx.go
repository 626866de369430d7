package models

import (
	"slices"

	"github.com/aretw0/switchlink/pkg/domain"
)

// conversion is the currency conversion decision taken after payee resolution.
type conversion struct {
	needed bool
	source string
	target string
}

// decideConversion compares our settlement currencies with the payee's.
//
// With SEND the amount is in our currency: conversion is needed when the payee
// cannot receive it, converting into the payee's first currency. With RECEIVE
// the amount is in the payee's currency: conversion is needed when we cannot
// settle it, converting from our first currency. Missing capabilities on
// either side mean no conversion.
func decideConversion(payer, payee []string, currency string, amountType domain.AmountType) conversion {
	if len(payer) == 0 || len(payee) == 0 {
		return conversion{}
	}
	switch amountType {
	case domain.AmountTypeSend:
		if slices.Contains(payee, currency) {
			return conversion{}
		}
		return conversion{needed: true, source: currency, target: payee[0]}
	case domain.AmountTypeReceive:
		if slices.Contains(payer, currency) {
			return conversion{}
		}
		return conversion{needed: true, source: payer[0], target: currency}
	}
	return conversion{}
}
