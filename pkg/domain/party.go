package domain

// PartyIDInfo identifies a party and, once resolved, the participant that hosts it.
type PartyIDInfo struct {
	PartyIDType      string         `json:"partyIdType"`
	PartyIdentifier  string         `json:"partyIdentifier"`
	PartySubIDOrType string         `json:"partySubIdOrType,omitempty"`
	FspID            string         `json:"fspId,omitempty"`
	ExtensionList    *ExtensionList `json:"extensionList,omitempty"`
}

// PartyComplexName is the structured name of a person.
type PartyComplexName struct {
	FirstName  string `json:"firstName,omitempty"`
	MiddleName string `json:"middleName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
}

// PartyPersonalInfo carries personal attributes of a party.
type PartyPersonalInfo struct {
	ComplexName *PartyComplexName `json:"complexName,omitempty"`
	DateOfBirth string            `json:"dateOfBirth,omitempty"`
}

// Party is the protocol representation of a counterparty.
type Party struct {
	PartyIDInfo                PartyIDInfo        `json:"partyIdInfo"`
	MerchantClassificationCode string             `json:"merchantClassificationCode,omitempty"`
	Name                       string             `json:"name,omitempty"`
	PersonalInfo               *PartyPersonalInfo `json:"personalInfo,omitempty"`
	SupportedCurrencies        []string           `json:"supportedCurrencies,omitempty"`
}

// PartiesResponse is the body of a PUT /parties callback.
type PartiesResponse struct {
	Party Party `json:"party"`
}

// TransferParty is the flattened caller-facing view of a party.
type TransferParty struct {
	Type                       string      `json:"type,omitempty"`
	IDType                     string      `json:"idType"`
	IDValue                    string      `json:"idValue"`
	IDSubValue                 string      `json:"idSubValue,omitempty"`
	DisplayName                string      `json:"displayName,omitempty"`
	FirstName                  string      `json:"firstName,omitempty"`
	MiddleName                 string      `json:"middleName,omitempty"`
	LastName                   string      `json:"lastName,omitempty"`
	DateOfBirth                string      `json:"dateOfBirth,omitempty"`
	MerchantClassificationCode string      `json:"merchantClassificationCode,omitempty"`
	FspID                      string      `json:"fspId,omitempty"`
	SupportedCurrencies        []string    `json:"supportedCurrencies,omitempty"`
	ExtensionList              []Extension `json:"extensionList,omitempty"`
}

// Validate checks the identifying fields.
func (p TransferParty) Validate(field string) error {
	if p.IDType == "" {
		return &ValidationError{Field: field + ".idType", Reason: "is required"}
	}
	if p.IDValue == "" {
		return &ValidationError{Field: field + ".idValue", Reason: "is required"}
	}
	return nil
}

// ToProtocol converts the caller view into the protocol Party.
func (p TransferParty) ToProtocol() Party {
	party := Party{
		PartyIDInfo: PartyIDInfo{
			PartyIDType:      p.IDType,
			PartyIdentifier:  p.IDValue,
			PartySubIDOrType: p.IDSubValue,
			FspID:            p.FspID,
			ExtensionList:    NewExtensionList(p.ExtensionList),
		},
		MerchantClassificationCode: p.MerchantClassificationCode,
		Name:                       p.DisplayName,
	}
	if p.FirstName != "" || p.MiddleName != "" || p.LastName != "" || p.DateOfBirth != "" {
		info := &PartyPersonalInfo{DateOfBirth: p.DateOfBirth}
		if p.FirstName != "" || p.MiddleName != "" || p.LastName != "" {
			info.ComplexName = &PartyComplexName{
				FirstName:  p.FirstName,
				MiddleName: p.MiddleName,
				LastName:   p.LastName,
			}
		}
		party.PersonalInfo = info
	}
	return party
}

// WithResolved returns a copy of p enriched with the attributes of a resolved party.
// Identifying fields are kept from p; validation happens before merging.
func (p TransferParty) WithResolved(resolved Party) TransferParty {
	out := p
	out.FspID = resolved.PartyIDInfo.FspID
	out.DisplayName = resolved.Name
	out.MerchantClassificationCode = resolved.MerchantClassificationCode
	if resolved.PersonalInfo != nil {
		out.DateOfBirth = resolved.PersonalInfo.DateOfBirth
		if n := resolved.PersonalInfo.ComplexName; n != nil {
			out.FirstName = n.FirstName
			out.MiddleName = n.MiddleName
			out.LastName = n.LastName
		}
	}
	if len(resolved.SupportedCurrencies) > 0 {
		out.SupportedCurrencies = append([]string(nil), resolved.SupportedCurrencies...)
	}
	if resolved.PartyIDInfo.ExtensionList != nil {
		out.ExtensionList = append([]Extension(nil), resolved.PartyIDInfo.ExtensionList.Extension...)
	}
	return out
}

// ValidateResolvedParty checks that a lookup answer describes the requested party
// and carries a routable participant id.
func ValidateResolvedParty(requested TransferParty, resolved Party) error {
	info := resolved.PartyIDInfo
	if info.PartyIDType != requested.IDType {
		return &ValidationError{Field: "party.partyIdInfo.partyIdType", Reason: "expected " + requested.IDType + " got " + info.PartyIDType}
	}
	if info.PartyIdentifier != requested.IDValue {
		return &ValidationError{Field: "party.partyIdInfo.partyIdentifier", Reason: "expected " + requested.IDValue + " got " + info.PartyIdentifier}
	}
	if info.PartySubIDOrType != requested.IDSubValue {
		return &ValidationError{Field: "party.partyIdInfo.partySubIdOrType", Reason: "expected " + requested.IDSubValue + " got " + info.PartySubIDOrType}
	}
	if info.FspID == "" {
		return &ValidationError{Field: "party.partyIdInfo.fspId", Reason: "resolved party has no routable participant id"}
	}
	return nil
}
