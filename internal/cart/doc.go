// Package cart holds the till's cart: line items, stock limits and the
// serial-number prompt for warranty products.
//
// The scanner hands products to Controller.AddScanned and never learns the
// outcome. Everything that can go wrong (out of stock, stock limit,
// duplicate serial) is a refusal that leaves the cart unchanged and is
// logged. A warranty product opens the serial prompt; while it is open the
// controller reports a modal to its ModalNotifier so the scanner stops
// reacting to keys.
package cart
