// Package seed holds the demo catalog and staff used to bootstrap a fresh
// database and the in-memory store.
package seed

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/enum"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
)

// namespace keeps demo ids stable across runs.
var namespace = uuid.MustParse("4b2f0c1e-7d3a-4c55-9a1e-6f0b8d2c9e71")

func id(kind, name string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(kind+":"+name))
}

// Staff is a user with the PIN in clear text, hashed at insert time.
type Staff struct {
	User store.User
	PIN  string
}

type Dataset struct {
	Branches   []store.Branch
	Categories []store.Category
	Products   []store.Product
	Charges    []store.BranchCharge
	Staff      []Staff
}

// Demo returns the demo dataset. Two helpers share PIN 2222 so the name
// disambiguation path of PIN login is reachable.
func Demo() Dataset {
	branches := []store.Branch{
		{ID: id("branch", "Jubilee Hills"), Name: "Jubilee Hills", Address: "Road No. 36, Jubilee Hills, Hyderabad", Phone: "9000000001", IsActive: true},
		{ID: id("branch", "Gachibowli"), Name: "Gachibowli", Address: "DLF Cyber City, Gachibowli, Hyderabad", Phone: "9000000002", IsActive: true},
	}

	categories := []store.Category{
		{ID: id("category", "Kunafa"), Name: "Kunafa", SortOrder: 1},
		{ID: id("category", "Desserts"), Name: "Desserts", SortOrder: 2},
		{ID: id("category", "Beverages"), Name: "Beverages", SortOrder: 3},
	}

	product := func(category, name, desc, price string) store.Product {
		return store.Product{
			ID:          id("product", name),
			CategoryID:  id("category", category),
			Name:        name,
			Description: desc,
			Price:       decimal.RequireFromString(price),
			IsActive:    true,
		}
	}
	products := []store.Product{
		product("Kunafa", "Classic Cheese Kunafa", "Crisp kataifi with sweet cheese", "450"),
		product("Kunafa", "Nutella Kunafa", "Kunafa filled with Nutella", "500"),
		product("Kunafa", "Pistachio Kunafa", "Topped with crushed pistachio", "550"),
		product("Desserts", "Baklava (4 pcs)", "Walnut baklava", "240"),
		product("Desserts", "Umm Ali", "Bread pudding with nuts", "320"),
		product("Beverages", "Arabic Coffee", "", "120"),
		product("Beverages", "Mint Lemonade", "", "150"),
	}

	var charges []store.BranchCharge
	for _, b := range branches {
		charges = append(charges,
			store.BranchCharge{ID: id("charge", b.Name+"/delivery"), BranchID: b.ID, Kind: enum.ChargeDelivery, Amount: decimal.NewFromInt(30), IsActive: true},
			store.BranchCharge{ID: id("charge", b.Name+"/packaging"), BranchID: b.ID, Kind: enum.ChargePackaging, Amount: decimal.NewFromInt(20), IsActive: true},
		)
	}

	staff := []Staff{
		{User: store.User{ID: id("user", "Admin"), Name: "Admin", Email: "admin@kunafakingdom.in", Role: enum.UserRoleAdmin, IsActive: true}, PIN: "1111"},
		{User: store.User{ID: id("user", "Ravi"), Name: "Ravi", Email: "ravi@kunafakingdom.in", Role: enum.UserRoleHelper, IsActive: true}, PIN: "2222"},
		{User: store.User{ID: id("user", "Sana"), Name: "Sana", Email: "sana@kunafakingdom.in", Role: enum.UserRoleHelper, IsActive: true}, PIN: "2222"},
	}

	return Dataset{
		Branches:   branches,
		Categories: categories,
		Products:   products,
		Charges:    charges,
		Staff:      staff,
	}
}
