package memstore

import (
	"context"
	"slices"
	"sort"

	"github.com/odyssey-erp/odyssey-pos/internal/payments"
	"github.com/odyssey-erp/odyssey-pos/internal/procurement"
	"github.com/odyssey-erp/odyssey-pos/internal/sales"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type salesRepo struct{ t *Tx }

func (r salesRepo) ClaimIdempotencyKey(_ context.Context, key string) error {
	if _, ok := r.t.st.idempotency[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	r.t.st.idempotency[key] = "sales"
	return nil
}

func (r salesRepo) InsertSale(_ context.Context, sale sales.Sale) (sales.Sale, error) {
	if err := r.t.fault("sales.InsertSale"); err != nil {
		return sales.Sale{}, err
	}
	sale.ID = r.t.st.id()
	sale.Lines = slices.Clone(sale.Lines)
	for i := range sale.Lines {
		sale.Lines[i].ID = r.t.st.id()
		sale.Lines[i].SaleID = sale.ID
	}
	r.t.st.sales[sale.ID] = cloneSale(sale)
	return sale, nil
}

func (r salesRepo) GetSaleForUpdate(_ context.Context, id int64) (sales.Sale, error) {
	sale, ok := r.t.st.sales[id]
	if !ok {
		return sales.Sale{}, shared.NotFound("sale", id)
	}
	return cloneSale(sale), nil
}

func (r salesRepo) UpdateSale(_ context.Context, sale sales.Sale) error {
	if err := r.t.fault("sales.UpdateSale"); err != nil {
		return err
	}
	if _, ok := r.t.st.sales[sale.ID]; !ok {
		return shared.NotFound("sale", sale.ID)
	}
	r.t.st.sales[sale.ID] = cloneSale(sale)
	return nil
}

func (r salesRepo) InsertReturn(_ context.Context, ret sales.Return) (sales.Return, error) {
	if err := r.t.fault("sales.InsertReturn"); err != nil {
		return sales.Return{}, err
	}
	ret.ID = r.t.st.id()
	ret.Items = slices.Clone(ret.Items)
	for i := range ret.Items {
		ret.Items[i].ID = r.t.st.id()
		ret.Items[i].ReturnID = ret.ID
	}
	stored := ret
	stored.Items = slices.Clone(ret.Items)
	r.t.st.returns = append(r.t.st.returns, stored)
	return ret, nil
}

func cloneSale(s sales.Sale) sales.Sale {
	s.Lines = slices.Clone(s.Lines)
	return s
}

// GetSale loads a sale.
func (s *Store) GetSale(_ context.Context, id int64) (sales.Sale, error) {
	st, unlock := s.read()
	defer unlock()
	sale, ok := st.sales[id]
	if !ok {
		return sales.Sale{}, shared.NotFound("sale", id)
	}
	return cloneSale(sale), nil
}

// SaleCount reports how many sales are stored.
func (s *Store) SaleCount() int {
	st, unlock := s.read()
	defer unlock()
	return len(st.sales)
}

// Returns lists the returns recorded against a sale.
func (s *Store) Returns(saleID int64) []sales.Return {
	st, unlock := s.read()
	defer unlock()
	var out []sales.Return
	for _, r := range st.returns {
		if r.SaleID == saleID {
			out = append(out, r)
		}
	}
	return out
}

type paymentsRepo struct{ t *Tx }

func (r paymentsRepo) InsertPayment(_ context.Context, p payments.Payment) (payments.Payment, error) {
	if err := r.t.fault("payments.InsertPayment"); err != nil {
		return payments.Payment{}, err
	}
	p.ID = r.t.st.id()
	r.t.st.payments[p.ID] = p
	return p, nil
}

func (r paymentsRepo) ListPayments(_ context.Context, refType string, refID int64) ([]payments.Payment, error) {
	var out []payments.Payment
	for _, p := range r.t.st.payments {
		if p.RefType == refType && p.RefID == refID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r paymentsRepo) GetDocumentForUpdate(_ context.Context, refType string, id int64) (payments.Document, error) {
	switch refType {
	case payments.RefSale:
		sale, ok := r.t.st.sales[id]
		if !ok {
			return payments.Document{}, shared.NotFound(refType, id)
		}
		doc := payments.Document{
			RefType:       refType,
			ID:            sale.ID,
			Number:        sale.InvoiceNumber,
			Total:         sale.Total,
			Paid:          sale.PaidAmount,
			Balance:       sale.Balance,
			Status:        string(sale.Status),
			PaymentStatus: sale.PaymentStatus,
		}
		if sale.CustomerID != nil {
			doc.PartyID = *sale.CustomerID
		}
		return doc, nil
	case payments.RefPurchase:
		grn, ok := r.t.st.receipts[id]
		if !ok {
			return payments.Document{}, shared.NotFound(refType, id)
		}
		return payments.Document{
			RefType:       refType,
			ID:            grn.ID,
			Number:        grn.Number,
			PartyID:       grn.VendorID,
			Total:         grn.Total,
			Paid:          grn.PaidAmount,
			Balance:       grn.Balance,
			PaymentStatus: grn.PaymentStatus,
		}, nil
	}
	return payments.Document{}, shared.Validation("payments: unknown reference type %q", refType)
}

func (r paymentsRepo) UpdateDocumentPayment(_ context.Context, doc payments.Document) error {
	if err := r.t.fault("payments.UpdateDocumentPayment"); err != nil {
		return err
	}
	switch doc.RefType {
	case payments.RefSale:
		sale := cloneSale(r.t.st.sales[doc.ID])
		sale.PaidAmount, sale.Balance, sale.PaymentStatus = doc.Paid, doc.Balance, doc.PaymentStatus
		sale.Status = sales.Status(doc.Status)
		r.t.st.sales[doc.ID] = sale
	case payments.RefPurchase:
		grn := cloneReceipt(r.t.st.receipts[doc.ID])
		grn.PaidAmount, grn.Balance, grn.PaymentStatus = doc.Paid, doc.Balance, doc.PaymentStatus
		r.t.st.receipts[doc.ID] = grn
	default:
		return shared.Validation("payments: unknown reference type %q", doc.RefType)
	}
	return nil
}

// GetPayment loads one payment.
func (s *Store) GetPayment(_ context.Context, id int64) (payments.Payment, error) {
	st, unlock := s.read()
	defer unlock()
	p, ok := st.payments[id]
	if !ok {
		return payments.Payment{}, shared.NotFound("payment", id)
	}
	return p, nil
}

// PaymentsFor lists payments against a document in id order.
func (s *Store) PaymentsFor(refType string, refID int64) []payments.Payment {
	st, unlock := s.read()
	defer unlock()
	var out []payments.Payment
	for _, p := range st.payments {
		if p.RefType == refType && p.RefID == refID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type procurementRepo struct{ t *Tx }

func (r procurementRepo) InsertPurchaseOrder(_ context.Context, po procurement.PurchaseOrder) (procurement.PurchaseOrder, error) {
	po.ID = r.t.st.id()
	po.Lines = slices.Clone(po.Lines)
	for i := range po.Lines {
		po.Lines[i].ID = r.t.st.id()
		po.Lines[i].POID = po.ID
	}
	r.t.st.orders[po.ID] = clonePO(po)
	return po, nil
}

func (r procurementRepo) GetPurchaseOrderForUpdate(_ context.Context, id int64) (procurement.PurchaseOrder, error) {
	po, ok := r.t.st.orders[id]
	if !ok {
		return procurement.PurchaseOrder{}, shared.NotFound("purchase order", id)
	}
	return clonePO(po), nil
}

func (r procurementRepo) UpdatePurchaseOrder(_ context.Context, po procurement.PurchaseOrder) error {
	stored, ok := r.t.st.orders[po.ID]
	if !ok {
		return shared.NotFound("purchase order", po.ID)
	}
	stored = clonePO(stored)
	stored.Status = po.Status
	received := make(map[int64]int64, len(po.Lines))
	for _, l := range po.Lines {
		received[l.ID] = l.ReceivedQty
	}
	for i := range stored.Lines {
		if qty, ok := received[stored.Lines[i].ID]; ok {
			stored.Lines[i].ReceivedQty = qty
		}
	}
	r.t.st.orders[po.ID] = stored
	return nil
}

func (r procurementRepo) InsertReceipt(_ context.Context, grn procurement.GoodsReceipt) (procurement.GoodsReceipt, error) {
	if err := r.t.fault("procurement.InsertReceipt"); err != nil {
		return procurement.GoodsReceipt{}, err
	}
	grn.ID = r.t.st.id()
	grn.Lines = slices.Clone(grn.Lines)
	for i := range grn.Lines {
		grn.Lines[i].ID = r.t.st.id()
		grn.Lines[i].GRNID = grn.ID
	}
	r.t.st.receipts[grn.ID] = cloneReceipt(grn)
	return grn, nil
}

func (r procurementRepo) LinkReceiptJournal(_ context.Context, grnID, journalID int64) error {
	grn, ok := r.t.st.receipts[grnID]
	if !ok {
		return shared.NotFound("goods receipt", grnID)
	}
	grn = cloneReceipt(grn)
	grn.JournalID = &journalID
	r.t.st.receipts[grnID] = grn
	return nil
}

func clonePO(po procurement.PurchaseOrder) procurement.PurchaseOrder {
	po.Lines = slices.Clone(po.Lines)
	return po
}

func cloneReceipt(grn procurement.GoodsReceipt) procurement.GoodsReceipt {
	grn.Lines = slices.Clone(grn.Lines)
	return grn
}

// GetPurchaseOrder loads an order.
func (s *Store) GetPurchaseOrder(_ context.Context, id int64) (procurement.PurchaseOrder, error) {
	st, unlock := s.read()
	defer unlock()
	po, ok := st.orders[id]
	if !ok {
		return procurement.PurchaseOrder{}, shared.NotFound("purchase order", id)
	}
	return clonePO(po), nil
}

// GetReceipt loads a goods receipt.
func (s *Store) GetReceipt(_ context.Context, id int64) (procurement.GoodsReceipt, error) {
	st, unlock := s.read()
	defer unlock()
	grn, ok := st.receipts[id]
	if !ok {
		return procurement.GoodsReceipt{}, shared.NotFound("goods receipt", id)
	}
	return cloneReceipt(grn), nil
}
