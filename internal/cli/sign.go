package cli

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"coverline/internal/attest"
)

var (
	signKeyHex    string
	signPolicyID  uint64
	signClaimant  string
	signAmountOut string
	signDeadline  int64

	signTokenIn  string
	signAmountIn string
	signTokenOut string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a claim authorization with a local key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getApp().Config

		key, err := crypto.HexToECDSA(strings.TrimPrefix(signKeyHex, "0x"))
		if err != nil {
			return fmt.Errorf("invalid --key value: %w", err)
		}
		if signPolicyID == 0 {
			return errors.New("--policy must be greater than zero")
		}
		if !common.IsHexAddress(signClaimant) {
			return errors.New("--claimant must be a valid address")
		}
		amountOut, ok := new(big.Int).SetString(signAmountOut, 10)
		if !ok {
			return errors.New("--amount must be a decimal wei amount")
		}
		if signDeadline <= 0 {
			return errors.New("--deadline must be a unix timestamp")
		}

		var structHash common.Hash
		if signTokenIn != "" || signTokenOut != "" || signAmountIn != "" {
			if !common.IsHexAddress(signTokenIn) || !common.IsHexAddress(signTokenOut) {
				return errors.New("--token-in and --token-out must be valid addresses")
			}
			amountIn, ok := new(big.Int).SetString(signAmountIn, 10)
			if !ok {
				return errors.New("--amount-in must be a decimal wei amount")
			}
			structHash = attest.ExchangeClaim{
				Claim: attest.Claim{
					PolicyID:  signPolicyID,
					Claimant:  common.HexToAddress(signClaimant),
					AmountOut: amountOut,
					Deadline:  signDeadline,
				},
				TokenIn:  common.HexToAddress(signTokenIn),
				AmountIn: amountIn,
				TokenOut: common.HexToAddress(signTokenOut),
			}.StructHash()
		} else {
			structHash = attest.Claim{
				PolicyID:  signPolicyID,
				Claimant:  common.HexToAddress(signClaimant),
				AmountOut: amountOut,
				Deadline:  signDeadline,
			}.StructHash()
		}

		domain := attest.DomainSeparator(cfg.Product.Name, big.NewInt(cfg.Chain.ChainID), common.HexToAddress(cfg.Product.Address))
		digest := attest.Digest(domain, structHash)
		signature, err := attest.Sign(digest, key)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "signer: %s\ndigest: %s\nsignature: %s\n",
			crypto.PubkeyToAddress(key.PublicKey).Hex(),
			digest.Hex(),
			hexutil.Encode(signature),
		)
		return nil
	},
}

func init() {
	signCmd.Flags().StringVar(&signKeyHex, "key", "", "Hex-encoded signer private key")
	signCmd.Flags().Uint64Var(&signPolicyID, "policy", 0, "Policy identifier")
	signCmd.Flags().StringVar(&signClaimant, "claimant", "", "Claimant address")
	signCmd.Flags().StringVar(&signAmountOut, "amount", "", "Claim payout in wei")
	signCmd.Flags().Int64Var(&signDeadline, "deadline", 0, "Signature deadline (unix seconds)")
	signCmd.Flags().StringVar(&signTokenIn, "token-in", "", "Exchange claim input token address")
	signCmd.Flags().StringVar(&signAmountIn, "amount-in", "", "Exchange claim input amount in wei")
	signCmd.Flags().StringVar(&signTokenOut, "token-out", "", "Exchange claim output token address")
	_ = signCmd.MarkFlagRequired("key")
	_ = signCmd.MarkFlagRequired("policy")
	_ = signCmd.MarkFlagRequired("claimant")
	_ = signCmd.MarkFlagRequired("amount")
	_ = signCmd.MarkFlagRequired("deadline")
}
