package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	apiKey := hex.EncodeToString(key)

	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}

	fmt.Printf("API_KEY=%s\n", apiKey)
	fmt.Printf("API_KEY_HASH=%s\n", hash)
}
