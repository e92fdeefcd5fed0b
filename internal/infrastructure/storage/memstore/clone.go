package memstore

import (
	"columbarium/internal/core/id"
	"columbarium/internal/domain/amortization"
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/domain/customer"
	"columbarium/internal/domain/niche"
	"columbarium/internal/domain/payment"
	"columbarium/internal/domain/sale"
)

func cloneNiche(n niche.Niche) niche.Niche {
	n.CurrentOwnerID = clonePtr(n.CurrentOwnerID)
	n.History = nil
	return n
}

func cloneCustomer(c customer.Customer) customer.Customer {
	c.RFC = clonePtr(c.RFC)
	c.DeceasedDate = clonePtr(c.DeceasedDate)
	c.DeceasedRecordID = clonePtr(c.DeceasedRecordID)
	c.LegacyBeneficiaries = append([]customer.LegacyBeneficiary(nil), c.LegacyBeneficiaries...)
	return c
}

func cloneBeneficiary(b beneficiary.Beneficiary) beneficiary.Beneficiary {
	b.DateOfBirth = clonePtr(b.DateOfBirth)
	b.DeceasedDate = clonePtr(b.DeceasedDate)
	b.BecameOwnerAt = clonePtr(b.BecameOwnerAt)
	b.LinkedCustomerID = clonePtr(b.LinkedCustomerID)
	b.InactivationReason = clonePtr(b.InactivationReason)
	return b
}

func cloneSale(s sale.Sale) sale.Sale {
	s.NicheIDs = append([]id.ID(nil), s.NicheIDs...)
	s.Cancellation = clonePtr(s.Cancellation)
	s.SuccessionHistory = append([]sale.SuccessionEntry(nil), s.SuccessionHistory...)
	table := make([]amortization.Installment, len(s.Installments))
	for i, inst := range s.Installments {
		inst.Payments = append([]amortization.AppliedPayment(nil), inst.Payments...)
		table[i] = inst
	}
	s.Installments = table
	return s
}

func clonePayment(p payment.Payment) payment.Payment {
	switch v := p.Variant.(type) {
	case payment.MonthlyPayment:
		v.AppliedTo = append([]amortization.Line(nil), v.AppliedTo...)
		p.Variant = v
	case payment.ExtraPayment:
		v.AppliedTo = append([]amortization.Line(nil), v.AppliedTo...)
		p.Variant = v
	}
	return p
}
