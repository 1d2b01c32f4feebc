package catalog

import "github.com/shopspring/decimal"

func product(class, name, price string) Product {
	return Product{ClassName: class, ProductName: name, UnitPrice: decimal.RequireFromString(price)}
}

// SampleProducts is the demo catalog the detector model was trained on.
func SampleProducts() []Product {
	return []Product{
		product("toddy-750g", "Toddy - 750g", "18.5"),
		product("yogurt-pil-frutilla-1kg", "Yogurt Bebible - Pil - 1000g - Frutilla", "10.9"),
		product("dulce-leche-pil-500g", "Dulce de Leche - Pil - 500g", "9.2"),
		product("chocolike-800g", "Chocolike - 800g", "16.3"),
		product("chocolike-2000g", "Chocolike - 2000g", "34.5"),
		product("leche-polvo-pil-2200g", "Leche entera - polvo - Pil - 2200g", "45.0"),
		product("leche-condensada-mococa-395g", "Leche condensada - Mococa - 350g", "6.8"),
		product("extracto-tomate-cayetana", "Extracto de tomate - Cayentana", "4.5"),
		product("crema-esparragos-kris-75g", "Crema de Esparragos - Kris - 75g", "3.7"),
		product("crema-champiniones-kris-75g", "Crema de Champiñones - Kris - 75g", "3.7"),
		product("sal-celusal-500g", "Sal Fina - Celusal - 500g", "2.5"),
		product("gelatina-limon-frutigel", "Gelatina - Limon - Fruti Gel", "1.8"),
		product("flan-vainilla-kris-120g", "Flan - Vainilla - Kris - 120g", "2.6"),
		product("mostaza-kris-490g", "Mostaza - Kris - 490g", "4.3"),
		product("mostaza-kris-200g", "Mostaza - Kris - 200g", "2.7"),
		product("ketchup-kris-200g", "Ketchup - Kris - 200g", "3.2"),
		product("ecco-nestle-170g", "Ecco - Nestle - 170g", "7.8"),
		product("te-ciruela-21dias-42u", "Te - Ciruela - Plan 21 Dias - 42 unidades", "12.5"),
		product("choclo-lata-isamar-300g", "Granos de Choclo - Lata - Isamar - 300g", "4.1"),
		product("vainilla-liquida-miki-110ml", "Vainilla Líquida - Miki - 110ml", "3.9"),
	}
}
