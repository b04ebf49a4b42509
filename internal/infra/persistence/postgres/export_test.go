package postgres

var NewStubDB = newStubDB
