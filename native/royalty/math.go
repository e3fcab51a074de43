package royalty

import (
	"errors"
	"math/big"
)

// ErrArithmetic is returned when the split does not fit the sale price, for
// example when fees plus royalties exceed it.
var ErrArithmetic = errors.New("royalty: arithmetic underflow")

func bpsShare(amount uint64, bps uint16) uint64 {
	share := new(big.Int).Mul(new(big.Int).SetUint64(amount), big.NewInt(int64(bps)))
	share.Div(share, big.NewInt(10_000))
	return share.Uint64()
}

func percentShare(amount uint64, percent uint8) uint64 {
	share := new(big.Int).Mul(new(big.Int).SetUint64(amount), big.NewInt(int64(percent)))
	share.Div(share, big.NewInt(100))
	return share.Uint64()
}

// Compute splits a sale price into platform fee, per-creator royalties and
// the seller remainder. sellerFeeBps is the asset's own recorded royalty rate
// and is applied as recorded; the configured ceiling does not clamp it here.
// All intermediates widen through big.Int so the basis-point products cannot
// overflow.
func Compute(salePrice uint64, platformFeeBps, sellerFeeBps uint16, creators []Creator) (*Breakdown, error) {
	platformFee := bpsShare(salePrice, platformFeeBps)
	totalRoyalty := bpsShare(salePrice, sellerFeeBps)

	var totalRoyaltyFee uint64
	payouts := make([]CreatorPayout, 0, len(creators))
	for _, creator := range creators {
		if !creator.Verified {
			continue
		}
		fee := percentShare(totalRoyalty, creator.Share)
		sum := totalRoyaltyFee + fee
		if sum < totalRoyaltyFee {
			return nil, ErrArithmetic
		}
		totalRoyaltyFee = sum
		payouts = append(payouts, CreatorPayout{Address: creator.Address, Share: creator.Share, Amount: fee})
	}

	if platformFee > salePrice {
		return nil, ErrArithmetic
	}
	remainder := salePrice - platformFee
	if totalRoyaltyFee > remainder {
		return nil, ErrArithmetic
	}
	sellerAmount := remainder - totalRoyaltyFee

	return &Breakdown{
		SalePrice:       salePrice,
		PlatformFee:     platformFee,
		TotalRoyaltyFee: totalRoyaltyFee,
		SellerAmount:    sellerAmount,
		Creators:        payouts,
	}, nil
}
