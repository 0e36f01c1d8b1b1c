package domain

var Tables = []interface{}{
	&Payment{},
}
