package testutil

import "github.com/ledgerline/brandmatch/internal/model"

// The fixture dataset is deliberately adversarial: overlapping brand names,
// brand names that are everyday words, processor-prefixed narratives, and a
// transaction with a dangling category reference.

// FixtureBrands returns the fixture brand set.
func FixtureBrands() []model.Brand {
	return []model.Brand{
		{ID: 1, Name: "Shell", Sector: "automotive"},
		{ID: 2, Name: "Apple", Sector: "technology"},
		{ID: 3, Name: "Blue Bottle Coffee", Sector: "food"},
		{ID: 4, Name: "Shell Station", Sector: "automotive"},
		{ID: 5, Name: "Delta Airlines", Sector: "travel"},
	}
}

// FixtureCategories returns the fixture category set.
func FixtureCategories() []model.Category {
	return []model.Category{
		{ID: 10, Description: "Coffee Shops", Sector: "food"},
		{ID: 20, Description: "Fuel and Service Stations", Sector: "automotive"},
		{ID: 30, Description: "Consumer Electronics", Sector: "technology"},
		{ID: 40, Description: "Airlines", Sector: "travel"},
		{ID: 50, Description: "Groceries", Sector: "food"},
	}
}

// FixtureTransactions returns the fixture transaction set. Transaction t8
// references category 55, which no fixture category defines.
func FixtureTransactions() []model.Transaction {
	return []model.Transaction{
		{ID: txnID("t1", "bank-a"), MerchantRef: "shell-oil", Narrative: "SHELL OIL 57442210", CategoryID: 20},
		{ID: txnID("t2", "bank-a"), MerchantRef: "shell-station", Narrative: "SHELL STATION 4421 DENVER", CategoryID: 20},
		{ID: txnID("t3", "bank-a"), MerchantRef: "apple-store", Narrative: "APPLE STORE R042", CategoryID: 30},
		{ID: txnID("t4", "bank-a"), MerchantRef: "farm-stand", Narrative: "APPLE FARM STAND 33", CategoryID: 50},
		{ID: txnID("t5", "bank-a"), MerchantRef: "blue-bottle", Narrative: "SQ *BLUE BOTTLE COFFEE", CategoryID: 10},
		{ID: txnID("t6", "bank-a"), MerchantRef: "rays-pizza", Narrative: "SQ *RAYS PIZZA", CategoryID: 10},
		{ID: txnID("t7", "bank-b"), MerchantRef: "delta-air", Narrative: "DELTA AIR 0062311209", CategoryID: 40},
		{ID: txnID("t8", "bank-b"), MerchantRef: "delta-faucet", Narrative: "DELTA FAUCET CO", CategoryID: 55},
		{ID: txnID("t9", "bank-b"), MerchantRef: "blue-bottle", Narrative: "BLUE BOTTLE COFFEE OAK", CategoryID: 10},
		{ID: txnID("t10", "bank-b"), MerchantRef: "vending", Narrative: "VENDING SVC 0091", CategoryID: 50},
	}
}

func txnID(record, source string) model.TransactionID {
	return model.TransactionID{RecordID: record, SourceID: source}
}
