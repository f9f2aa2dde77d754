package storeserver

// collection описывает коллекцию хранилища и правила адресации её документов.
type collection struct {
	// idField: поле документа, по которому он адресуется в пути.
	idField string
	// idPrefix: префикс идентификатора, назначаемого хранилищем.
	idPrefix string
	// clientKeyed: идентификатор обязан прийти от клиента (счёт лояльности адресуется user_id).
	clientKeyed bool
	// serialField: дополнительный идентификатор, который хранилище назначает само.
	serialField  string
	serialPrefix string
	// listKey: GET /{c}/{value} возвращает список документов с этим полем вместо одного документа.
	listKey string
	// aliases: сегменты пути GET /{c}/{alias}/{value} и соответствующие им поля.
	aliases map[string]string
}

var collections = map[string]collection{
	"hotels": {
		idField:  "hotel_id",
		idPrefix: "H",
		aliases:  map[string]string{"location": "location"},
	},
	"rooms": {
		idField:  "room_id",
		idPrefix: "R",
		aliases:  map[string]string{"type": "type", "hotel": "hotel_id"},
	},
	"users": {
		idField:  "user_id",
		idPrefix: "U",
		aliases:  map[string]string{"role": "role", "email": "email"},
	},
	"bookings": {
		idField:  "booking_id",
		idPrefix: "B",
		aliases: map[string]string{
			"user":   "user_id",
			"room":   "room_id",
			"hotel":  "hotel_id",
			"status": "status",
		},
	},
	"payment": {
		idField:  "payment_id",
		idPrefix: "P",
		aliases:  map[string]string{"user": "user_id", "booking": "bookingid"},
	},
	"loyalty": {
		idField:      "user_id",
		clientKeyed:  true,
		serialField:  "loyalty_id",
		serialPrefix: "L",
	},
	"redemptions": {
		idField:  "redemption_id",
		idPrefix: "RD",
		listKey:  "user_id",
		aliases:  map[string]string{"booking": "booking_id"},
	},
	"reviews": {
		idField:  "review_id",
		idPrefix: "RV",
		aliases:  map[string]string{"hotel": "hotel_id", "user": "user_id"},
	},
}
