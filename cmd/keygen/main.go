// keygen derives BIP44 keypairs offline and writes an "address,privateKey"
// CSV suitable for POST /api/addresses/import. The mnemonic is printed
// once and must be stored out of band; the server never derives keys at
// runtime.
package main

import (
	"encoding/csv"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

const (
	coinTypeBTC = 0
	coinTypeETH = 60
)

func main() {
	currency := flag.String("currency", "btc", "btc or eth")
	count := flag.Int("count", 100, "number of keypairs to derive")
	out := flag.String("out", "", "output CSV path (default <currency>_addresses.csv)")
	mnemonic := flag.String("mnemonic", "", "reuse an existing mnemonic instead of generating one")
	flag.Parse()

	var coinType uint32
	switch *currency {
	case "btc":
		coinType = coinTypeBTC
	case "eth":
		coinType = coinTypeETH
	default:
		log.Fatalf("unsupported currency %q", *currency)
	}

	phrase := *mnemonic
	if phrase == "" {
		entropy, err := bip39.NewEntropy(256)
		if err != nil {
			log.Fatalf("generate entropy: %v", err)
		}
		phrase, err = bip39.NewMnemonic(entropy)
		if err != nil {
			log.Fatalf("generate mnemonic: %v", err)
		}
		fmt.Println("mnemonic (store this safely, it is not written anywhere):")
		fmt.Println(" ", phrase)
	}
	seed := bip39.NewSeed(phrase, "")

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		log.Fatalf("derive master key: %v", err)
	}
	// m / 44' / coinType' / 0' / 0
	change, err := derivePath(master,
		hdkeychain.HardenedKeyStart+44,
		hdkeychain.HardenedKeyStart+coinType,
		hdkeychain.HardenedKeyStart+0,
		0)
	if err != nil {
		log.Fatalf("derive account chain: %v", err)
	}

	path := *out
	if path == "" {
		path = *currency + "_addresses.csv"
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)

	for i := 0; i < *count; i++ {
		child, err := change.Derive(uint32(i))
		if err != nil {
			log.Fatalf("derive index %d: %v", i, err)
		}
		priv, err := child.ECPrivKey()
		if err != nil {
			log.Fatalf("private key at index %d: %v", i, err)
		}

		var address, privOut string
		switch *currency {
		case "btc":
			address, privOut, err = btcPair(priv)
		case "eth":
			address, privOut, err = ethPair(priv)
		}
		if err != nil {
			log.Fatalf("encode keypair at index %d: %v", i, err)
		}
		if err := w.Write([]string{address, privOut}); err != nil {
			log.Fatalf("write row %d: %v", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatalf("flush %s: %v", path, err)
	}
	fmt.Printf("wrote %d %s keypairs to %s\n", *count, *currency, path)
}

func derivePath(key *hdkeychain.ExtendedKey, indices ...uint32) (*hdkeychain.ExtendedKey, error) {
	var err error
	for _, idx := range indices {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, err
		}
	}
	return key, nil
}

// btcPair encodes a P2PKH mainnet address and the key as WIF.
func btcPair(priv *btcec.PrivateKey) (string, string, error) {
	pubHash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressPubKeyHash(pubHash, &chaincfg.MainNetParams)
	if err != nil {
		return "", "", err
	}
	wif, err := btcutil.NewWIF(priv, &chaincfg.MainNetParams, true)
	if err != nil {
		return "", "", err
	}
	return addr.EncodeAddress(), wif.String(), nil
}

// ethPair encodes a checksummed Ethereum address and the key as hex.
func ethPair(priv *btcec.PrivateKey) (string, string, error) {
	ecdsaKey, err := ethcrypto.ToECDSA(priv.Serialize())
	if err != nil {
		return "", "", err
	}
	address := ethcrypto.PubkeyToAddress(ecdsaKey.PublicKey)
	return address.Hex(), hex.EncodeToString(priv.Serialize()), nil
}
